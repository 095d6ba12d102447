package graph

import (
	"fmt"
	"testing"

	"github.com/born-ml/exprgraph/internal/backend/cpu"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gradEps = 1e-2
	gradTol = 1e-2
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(cpu.New())
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func checkGradient(t *testing.T, g *Graph, top Node, p *ParamNode) {
	t.Helper()
	res, err := g.CheckGradient(top, p, gradEps)
	require.NoError(t, err)
	assert.Less(t, res.MaxAbsError, gradTol, "analytic %v, numeric %v", res.Analytic, res.Numeric)
}

func TestElementwiseGradients(t *testing.T) {
	tests := []struct {
		name string
		init []float32
		op   func(g *Graph, x Node) Node
	}{
		{"logit", []float32{-1.5, 0.2, 2}, func(g *Graph, x Node) Node { return g.Logit(x) }},
		{"tanh", []float32{-1, 0.3, 0.8}, func(g *Graph, x Node) Node { return g.Tanh(x) }},
		{"relu", []float32{-1, 0.5, 2}, func(g *Graph, x Node) Node { return g.ReLU(x) }},
		{"log", []float32{0.5, 1, 3}, func(g *Graph, x Node) Node { return g.Log(x) }},
		{"exp", []float32{-1, 0, 1.5}, func(g *Graph, x Node) Node { return g.Exp(x) }},
		{"neg", []float32{-2, 0, 3}, func(g *Graph, x Node) Node { return g.Neg(x) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t)
			w := g.Param("w", tensor.MustShape(1, 3), tt.init)
			top := g.Sum(tt.op(g, w), AllAxes)
			checkGradient(t, g, top, w)
		})
	}
}

func TestElementTypesAndColors(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(1), []float32{1})
	want := map[Node]string{
		g.Logit(x): "logit",
		g.Tanh(x):  "tanh",
		g.ReLU(x):  "ReLU",
		g.Log(x):   "log",
		g.Exp(x):   "exp",
		g.Neg(x):   "-",
	}
	for n, typ := range want {
		assert.Equal(t, typ, n.Type())
		assert.Equal(t, "yellow", n.Color())
		assert.False(t, n.Trainable())
	}
}

func TestReLUDerivativeAtZero(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(3), []float32{0, -0.5, 0.5})
	top := g.Sum(g.ReLU(w), AllAxes)
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(top))
	assert.Equal(t, []float32{0, 0, 1}, w.Grad().AsFloat32())
}

func TestSumAndMeanOverAllAxes(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2, 3), []float32{1, 2, 3, 4, 5, 6})
	sum := g.Sum(w, AllAxes)
	mean := g.Mean(w, AllAxes)
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, sum.Shape())
	assert.Equal(t, "sum", sum.Type())
	assert.Equal(t, "mean", mean.Type())

	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{21}, sum.Val().AsFloat32())
	assert.InDelta(t, 3.5, mean.Val().AsFloat32()[0], 1e-6)

	require.NoError(t, g.Backward(sum))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, w.Grad().AsFloat32())

	require.NoError(t, g.Backward(mean))
	assert.InDeltaSlice(t, []float32{1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6}, w.Grad().AsFloat32(), 1e-6)
}

func TestReduceOverOneAxis(t *testing.T) {
	init := []float32{0.1, -0.2, 0.3, 0.4, -0.5, 0.6, 0.7, -0.8, 0.9, 1.0, -1.1, 1.2}
	for axis := range tensor.MaxAxes {
		t.Run(fmt.Sprintf("axis%d", axis), func(t *testing.T) {
			g := newTestGraph(t)
			w := g.Param("w", tensor.MustShape(2, 3, 2), init)
			sum := g.Sum(w, axis)
			assert.Equal(t, 1, sum.Shape()[axis])
			mean := g.Mean(w, axis)
			assert.Equal(t, axis, mean.Axis())
			top := g.Sum(g.Tanh(mean), AllAxes)
			checkGradient(t, g, top, w)
		})
	}

	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2, 3), []float32{1, 2, 3, 4, 5, 6})
	rows := g.Sum(x, 0)
	cols := g.Mean(x, 1)
	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{5, 7, 9}, rows.Val().AsFloat32())
	assert.InDeltaSlice(t, []float32{2, 5}, cols.Val().AsFloat32(), 1e-6)
}

func TestSoftmaxUniformRow(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(1, 5), []float32{3, 3, 3, 3, 3})
	sm := g.Softmax(x)
	require.NoError(t, g.Forward())

	var sum float32
	for _, v := range sm.Val().AsFloat32() {
		assert.InDelta(t, 0.2, v, 1e-6)
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-6)
	assert.Nil(t, sm.Mask())
}

func TestMaskedSoftmax(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2, 4), []float32{1, 5, 2, 9, -1, 0, 1, 2})
	mask := g.Input(tensor.MustShape(1, 4), []float32{1, 0, 1, 0})
	sm := g.MaskedSoftmax(x, mask)
	require.NoError(t, g.Forward())

	y := sm.Val().AsFloat32()
	for _, masked := range []int{1, 3, 5, 7} {
		assert.Equal(t, float32(0), y[masked])
	}
	assert.InDelta(t, 1, y[0]+y[2], 1e-6)
	assert.InDelta(t, 1, y[4]+y[6], 1e-6)
	assert.Len(t, sm.Children(), 2)
}

func TestSoftmaxGradients(t *testing.T) {
	init := []float32{0.5, -1, 2, 0.1, 0.3, -0.7, 1.1, 0.2}

	t.Run("softmax", func(t *testing.T) {
		g := newTestGraph(t)
		w := g.Param("w", tensor.MustShape(2, 4), init)
		top := g.Sum(g.Exp(g.Softmax(w)), AllAxes)
		checkGradient(t, g, top, w)
	})

	t.Run("masked", func(t *testing.T) {
		g := newTestGraph(t)
		w := g.Param("w", tensor.MustShape(2, 4), init)
		mask := g.Input(tensor.MustShape(2, 4), []float32{1, 1, 0, 1, 0, 1, 1, 1})
		sm := g.MaskedSoftmax(w, mask)
		top := g.Sum(g.Exp(sm), AllAxes)
		checkGradient(t, g, top, w)
		assert.Equal(t, float32(0), w.Grad().AsFloat32()[2])
		assert.Equal(t, float32(0), w.Grad().AsFloat32()[4])
		assert.False(t, mask.Trainable())
	})

	t.Run("logsoftmax", func(t *testing.T) {
		g := newTestGraph(t)
		w := g.Param("w", tensor.MustShape(2, 4), init)
		top := g.Sum(g.Tanh(g.LogSoftmax(w)), AllAxes)
		checkGradient(t, g, top, w)
	})
}

func TestRowsAliasedIndicesAccumulate(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(3, 2), []float32{1, 2, 3, 4, 5, 6})
	rows := g.Rows(w, []int{0, 0, 2})
	top := g.Sum(rows, AllAxes)
	assert.Equal(t, tensor.Shape{3, 2, 1, 1}, rows.Shape())
	assert.Equal(t, []int{0, 0, 2}, rows.Indices())

	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{1, 2, 1, 2, 5, 6}, rows.Val().AsFloat32())

	require.NoError(t, g.Backward(top))
	assert.Equal(t, []float32{2, 2, 0, 0, 1, 1}, w.Grad().AsFloat32())
}

func TestTransposeRoundtrip(t *testing.T) {
	g := newTestGraph(t)
	data := []float32{1, 2, 3, 4, 5, 6}
	x := g.Input(tensor.MustShape(2, 3), data)
	once := g.Transpose(x)
	twice := g.Transpose(once)
	assert.Equal(t, tensor.Shape{3, 2, 1, 1}, once.Shape())
	assert.Equal(t, x.Shape(), twice.Shape())

	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, once.Val().AsFloat32())
	assert.Equal(t, data, twice.Val().AsFloat32())
}

func TestTransposeAndRowsGradient(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2, 3), []float32{0.1, -0.4, 0.9, 0.3, 0.5, -0.2})
	top := g.Sum(g.Tanh(g.Rows(g.Transpose(w), []int{2, 2, 0})), AllAxes)
	checkGradient(t, g, top, w)
}

func TestReshapeAliasesChildStorage(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2, 3), []float32{1, 2, 3, 4, 5, 6})
	r := g.Reshape(x, tensor.MustShape(3, 2))
	assert.Equal(t, "reshape", r.Type())
	assert.Equal(t, "grey", r.Color())

	require.NoError(t, g.Forward())
	require.True(t, r.Val().SharesStorage(x.Val()))
	assert.Equal(t, tensor.Shape{3, 2, 1, 1}, r.Val().Shape())

	x.Val().AsFloat32()[4] = 42
	assert.Equal(t, float32(42), r.Val().AsFloat32()[4])
	r.Val().AsFloat32()[0] = -1
	assert.Equal(t, float32(-1), x.Val().AsFloat32()[0])
	assert.Equal(t, x.Val().ByteSize(), g.MemoryBytes(), "views own no memory")

	// After the child is reallocated the view follows it.
	g.Free()
	require.NoError(t, g.Forward())
	assert.True(t, r.Val().SharesStorage(x.Val()))
	assert.Equal(t, float32(1), r.Val().AsFloat32()[0])
}

func TestReshapeGradient(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2, 3), []float32{0.1, -0.4, 0.9, 0.3, 0.5, -0.2})
	r := g.Reshape(w, tensor.MustShape(3, 2))
	top := g.Sum(g.Tanh(g.Transpose(r)), AllAxes)
	checkGradient(t, g, top, w)

	// Starting backward at the view seeds the child's whole adjoint.
	require.NoError(t, g.Backward(r))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, w.Grad().AsFloat32())
}

func TestTimestep(t *testing.T) {
	g := newTestGraph(t)
	data := make([]float32, 12)
	for i := range data {
		data[i] = float32(i)
	}
	w := g.Param("w", tensor.MustShape(2, 2, 3), data)
	step := g.Timestep(w, 1)
	top := g.Sum(step, AllAxes)
	assert.Equal(t, tensor.Shape{2, 2, 1, 1}, step.Shape())
	assert.Equal(t, 4, step.Offset())
	assert.Equal(t, "step", step.Type())

	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{4, 5, 6, 7}, step.Val().AsFloat32())
	assert.Equal(t, []float32{22}, top.Val().AsFloat32())

	want := []float32{0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0, 0}
	require.NoError(t, g.Backward(top))
	assert.Equal(t, want, w.Grad().AsFloat32())

	require.NoError(t, g.Backward(step))
	assert.Equal(t, want, w.Grad().AsFloat32())
}

func TestTimestepGradient(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2, 2, 2), []float32{0.1, 0.2, -0.3, 0.4, 0.5, -0.6, 0.7, 0.8})
	top := g.Sum(g.Logit(g.Timestep(w, 0)), AllAxes)
	checkGradient(t, g, top, w)
	assert.Equal(t, []float32{0, 0, 0, 0}, w.Grad().AsFloat32()[4:])
}

func TestDropoutProbabilityZeroIsIdentity(t *testing.T) {
	g := newTestGraph(t)
	data := []float32{1, -2, 3.5, 0, 7, -0.25}
	x := g.Input(tensor.MustShape(2, 3), data)
	d := g.Dropout(x, 0)
	for range 20 {
		require.NoError(t, g.Forward())
		assert.Equal(t, data, d.Val().AsFloat32())
	}
}

func TestDropoutProbabilityOneZeroes(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2, 3), []float32{1, -2, 3.5, 0.5, 7, -0.25})
	d := g.Dropout(w, 1)
	top := g.Sum(d, AllAxes)
	for range 20 {
		require.NoError(t, g.Forward())
		assert.Equal(t, make([]float32, 6), d.Val().AsFloat32())
	}
	require.NoError(t, g.Backward(top))
	assert.Equal(t, make([]float32, 6), w.Grad().AsFloat32())
}

func TestDropoutMaskRoutesGradient(t *testing.T) {
	g := newTestGraph(t)
	ones := make([]float32, 256)
	for i := range ones {
		ones[i] = 1
	}
	w := g.Param("w", tensor.MustShape(16, 16), ones)
	d := g.Dropout(w, 0.5)
	top := g.Sum(d, AllAxes)
	assert.Equal(t, float32(0.5), d.Probability())

	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(top))
	// With all-ones input the output is the mask itself.
	assert.Equal(t, d.Val().AsFloat32(), w.Grad().AsFloat32())

	first := d.Val().ToFloat32()
	require.NoError(t, g.Forward())
	assert.NotEqual(t, first, d.Val().AsFloat32(), "a new mask is drawn on every forward pass")

	require.NoError(t, g.Inference())
	assert.Equal(t, ones, d.Val().AsFloat32())
	require.NoError(t, g.Backward(top))
	assert.Equal(t, ones, w.Grad().AsFloat32())
}

func TestDropoutIsReproducible(t *testing.T) {
	masks := make([][]float32, 2)
	for i := range masks {
		g := newTestGraph(t)
		ones := make([]float32, 64)
		for j := range ones {
			ones[j] = 1
		}
		x := g.Input(tensor.MustShape(8, 8), ones)
		d := g.Dropout(x, 0.3)
		require.NoError(t, g.Forward())
		masks[i] = d.Val().ToFloat32()
		require.NoError(t, g.Close())
		assert.False(t, d.initialized)
	}
	assert.Equal(t, masks[0], masks[1])
}

func TestConstructionPanics(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(3, 2, 2), make([]float32, 12))
	other := newTestGraph(t)

	tests := map[string]func(){
		"rows out of range":     func() { g.Rows(x, []int{0, 3}) },
		"negative row":          func() { g.Rows(x, []int{-1}) },
		"no rows":               func() { g.Rows(x, nil) },
		"bad axis":              func() { g.Sum(x, 4) },
		"negative axis":         func() { g.Mean(x, -2) },
		"reshape elements":      func() { g.Reshape(x, tensor.Shape{5, 1, 1, 1}) },
		"reshape invalid":       func() { g.Reshape(x, tensor.Shape{12, 0, 1, 1}) },
		"timestep out of range": func() { g.Timestep(x, 2) },
		"negative timestep":     func() { g.Timestep(x, -1) },
		"mask columns":          func() { g.MaskedSoftmax(x, g.Input(tensor.MustShape(1, 3), make([]float32, 3))) },
		"nil mask":              func() { g.MaskedSoftmax(x, nil) },
		"dropout probability":   func() { g.Dropout(x, 1.5) },
		"nil child":             func() { g.Tanh(nil) },
		"foreign child":         func() { other.Exp(x) },
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Panics(t, f)
		})
	}
}
