package graph

import (
	"bytes"
	"testing"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/backend/cpu"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// failingNode panics inside its forward kernel.
type failingNode struct {
	node
}

func (n *failingNode) Type() string { return "fail" }

func (n *failingNode) ForwardOps(backend.Backend) []NodeOp {
	return []NodeOp{func() { panic(errors.New("kernel failed")) }}
}

func TestNodesAreTopologicallyOrdered(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2, 2), []float32{1, 2, 3, 4})
	w := g.Param("w", tensor.MustShape(2, 2), []float32{1, 2, 3, 4})
	y := g.Tanh(w)
	z := g.Sum(y, AllAxes)

	assert.Equal(t, 4, g.Len())
	for i, n := range g.Nodes() {
		assert.Equal(t, i, n.ID())
		for _, child := range n.Children() {
			assert.Less(t, child.ID(), n.ID())
		}
	}
	assert.False(t, x.Trainable())
	assert.True(t, w.Trainable())
	assert.True(t, y.Trainable())
	assert.True(t, z.Trainable())
	assert.Equal(t, []*ParamNode{w}, g.Params())
	assert.Equal(t, "w", w.Name())
	assert.NotEmpty(t, g.Name())
}

func TestBackwardErrors(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(3), []float32{1, 2, 3})
	top := g.Sum(w, AllAxes)
	assert.Error(t, g.Backward(top), "backward before forward")

	other := newTestGraph(t)
	assert.Error(t, g.Backward(other.Param("v", tensor.MustShape(1), []float32{1})))
	assert.Error(t, g.Backward(nil))

	require.NoError(t, g.Forward())
	x := g.Input(tensor.MustShape(3), []float32{1, 2, 3})
	constant := g.Exp(x)
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(constant))
	assert.Nil(t, constant.Grad(), "nothing to differentiate")
}

func TestKernelPanicBecomesError(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2), []float32{1, 2})
	g.add(&failingNode{node: newNode(g, x.Shape(), x)})

	err := g.Forward()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel failed")
	assert.Contains(t, err.Error(), "forward pass")
}

func TestGradientClipping(t *testing.T) {
	b := cpu.New()
	b.SetClip(0.5)
	g := New(b)
	defer func() { _ = g.Close() }()

	w := g.Param("w", tensor.MustShape(3), []float32{-3, 0.1, 2})
	top := g.Sum(g.Exp(w), AllAxes)
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(top))
	grad := w.Grad().AsFloat32()
	assert.InDelta(t, 0.0498, grad[0], 1e-4)
	assert.Equal(t, float32(0.5), grad[1])
	assert.Equal(t, float32(0.5), grad[2])
}

func TestCheckGradientIgnoresClip(t *testing.T) {
	b := cpu.New()
	b.SetClip(0.5)
	g := New(b)
	defer func() { _ = g.Close() }()

	w := g.Param("w", tensor.MustShape(3), []float32{-1, 1, 2})
	top := g.Sum(g.Exp(w), AllAxes)
	res, err := g.CheckGradient(top, w, 1e-3)
	require.NoError(t, err)
	assert.Less(t, res.MaxAbsError, 1e-1, "analytic %v, numeric %v", res.Analytic, res.Numeric)
	assert.InDelta(t, 7.389, res.Analytic[2], 1e-3)
	assert.Equal(t, float32(0.5), b.Clip())
}

func TestBackwardSkipsUnrelatedBranches(t *testing.T) {
	t.Run("log at zero", func(t *testing.T) {
		g := newTestGraph(t)
		w := g.Param("w", tensor.MustShape(1), []float32{0})
		other := g.Param("other", tensor.MustShape(1), []float32{3})
		g.Log(w)
		g.Sum(g.Tanh(other), AllAxes)
		loss := g.Sum(g.Tanh(w), AllAxes)
		require.NoError(t, g.Forward())
		require.NoError(t, g.Backward(loss))
		assert.Equal(t, []float32{1}, w.Grad().AsFloat32())
		assert.Equal(t, []float32{0}, other.Grad().AsFloat32())
	})
	t.Run("exp overflow", func(t *testing.T) {
		b := cpu.New()
		b.SetClip(10)
		g := New(b)
		defer func() { _ = g.Close() }()
		w := g.Param("w", tensor.MustShape(1), []float32{100})
		g.Exp(w)
		loss := g.Sum(g.Neg(w), AllAxes)
		require.NoError(t, g.Forward())
		require.NoError(t, g.Backward(loss))
		assert.Equal(t, []float32{-1}, w.Grad().AsFloat32())
	})
}

func TestFreeKeepsParameters(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(3), []float32{1, 2, 3})
	x := g.Input(tensor.MustShape(3), []float32{1, 1, 1})
	y := g.Tanh(w)
	top := g.Sum(y, AllAxes)
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(top))

	// Parameters are updated in place between passes.
	w.Val().AsFloat32()[0] = 0
	g.Free()
	assert.NotNil(t, w.Val())
	assert.Nil(t, w.Grad())
	assert.Nil(t, x.Val())
	assert.Nil(t, y.Val())
	assert.Equal(t, w.Val().ByteSize(), g.MemoryBytes())

	require.NoError(t, g.Forward())
	assert.Equal(t, float32(0), y.Val().AsFloat32()[0])
	assert.Equal(t, []float32{1, 1, 1}, x.Val().AsFloat32())
}

func TestSetValue(t *testing.T) {
	g := newTestGraph(t)
	x := g.Input(tensor.MustShape(2), []float32{1, 2})
	w := g.Param("w", tensor.MustShape(2), []float32{0, 0})
	y := g.Neg(x)
	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{-1, -2}, y.Val().AsFloat32())

	require.NoError(t, x.SetValue([]float32{5, 6}))
	require.NoError(t, g.Forward())
	assert.Equal(t, []float32{-5, -6}, y.Val().AsFloat32())

	require.NoError(t, w.SetValue([]float32{7, 8}))
	assert.Equal(t, []float32{7, 8}, w.Val().AsFloat32())
	assert.Error(t, w.SetValue([]float32{1}))
}

func TestFloat16Input(t *testing.T) {
	g := newTestGraph(t)
	half := []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}
	x := g.InputTensor(must.M1(tensor.FromFloat16(half, tensor.MustShape(2), tensor.CPU)))
	y := g.Exp(x)
	require.NoError(t, g.Forward())
	assert.Equal(t, tensor.Float32, x.Val().DType())
	assert.Equal(t, []float32{0.5, -2}, x.Val().AsFloat32())
	assert.InDelta(t, 1.6487, y.Val().AsFloat32()[0], 1e-4)
}

func TestParamSetTensorAndValues(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("w", tensor.MustShape(2), []float32{1, 2})
	assert.Equal(t, []float32{1, 2}, w.Values())

	half := []float16.Float16{float16.Fromfloat32(3), float16.Fromfloat32(4)}
	require.NoError(t, w.SetTensor(must.M1(tensor.FromFloat16(half, tensor.MustShape(2), tensor.CPU))))
	assert.Equal(t, []float32{3, 4}, w.Values())

	require.NoError(t, g.Forward())
	g.Backend().Fill(w.Val(), 9)
	assert.Equal(t, []float32{9, 9}, w.Values(), "values track training once allocated")

	wrong := must.M1(tensor.FromSlice([]float32{1, 2}, tensor.MustShape(1, 2), tensor.CPU))
	assert.Error(t, w.SetTensor(wrong))
	wrong.Release()
}

func TestCloseReleasesEverything(t *testing.T) {
	g := New(cpu.New())
	w := g.Param("w", tensor.MustShape(4), []float32{1, 1, 1, 1})
	d := g.Dropout(w, 0.5)
	top := g.Sum(d, AllAxes)
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(top))
	require.True(t, d.initialized)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.Nil(t, w.Val())
	assert.Nil(t, d.Val())
	assert.False(t, d.initialized)
	assert.Error(t, g.Forward())
	assert.Error(t, g.Backward(top))
	assert.Panics(t, func() { g.Tanh(w) })
}

func TestDot(t *testing.T) {
	g := newTestGraph(t)
	w := g.Param("embeddings", tensor.MustShape(2, 3), make([]float32, 6))
	g.Sum(g.Tanh(g.Transpose(w)), AllAxes)

	var buf bytes.Buffer
	require.NoError(t, g.Dot(&buf))
	dot := buf.String()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"0: embeddings\n[2 3 1 1]"`)
	assert.Contains(t, dot, `"2: tanh\n[3 2 1 1]", fillcolor="yellow"`)
	assert.Contains(t, dot, `fillcolor="orangered"`)
	assert.Contains(t, dot, "n0 -> n1;")
	assert.Contains(t, dot, "n2 -> n3;")
}

func TestNewWithDefaultBackend(t *testing.T) {
	t.Setenv(backend.ConfigEnvVar, "cpu")
	t.Setenv(backend.SeedEnvVar, "99")
	g, err := NewWithDefaultBackend()
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	assert.Equal(t, uint64(99), g.Backend().Seed())
	assert.Equal(t, "cpu", g.Backend().Name())

	t.Setenv(backend.SeedEnvVar, "not-a-seed")
	_, err = NewWithDefaultBackend()
	assert.Error(t, err)
}
