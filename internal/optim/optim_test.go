package optim_test

import (
	"testing"

	"github.com/born-ml/exprgraph/internal/backend/cpu"
	"github.com/born-ml/exprgraph/internal/graph"
	"github.com/born-ml/exprgraph/internal/optim"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// negSum builds loss = -Σx, whose gradient is -1 everywhere.
func negSum(t *testing.T, init []float32) (*graph.Graph, *graph.ParamNode, graph.Node) {
	t.Helper()
	g := graph.New(cpu.New())
	t.Cleanup(func() { _ = g.Close() })
	x := g.Param("x", tensor.MustShape(len(init)), init)
	loss := g.Sum(g.Neg(x), graph.AllAxes)
	return g, x, loss
}

func step(t *testing.T, g *graph.Graph, loss graph.Node, opt optim.Optimizer) float32 {
	t.Helper()
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(loss))
	require.NoError(t, opt.Step())
	return loss.Val().AsFloat32()[0]
}

func TestSGD_SimpleUpdate(t *testing.T) {
	g, x, loss := negSum(t, []float32{2, -1})
	sgd := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 0.1}, g.Backend())
	defer sgd.Close()

	step(t, g, loss, sgd)
	// x_new = x - lr * (-1)
	assert.InDeltaSlice(t, []float32{2.1, -0.9}, x.Val().AsFloat32(), 1e-6)
}

func TestSGD_WithMomentum(t *testing.T) {
	g, x, loss := negSum(t, []float32{1})
	sgd := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, g.Backend())
	defer sgd.Close()

	// velocity = -1, x = 1 + 0.1
	step(t, g, loss, sgd)
	assert.InDelta(t, 1.1, x.Val().AsFloat32()[0], 1e-6)

	// velocity = 0.9 * -1 - 1 = -1.9, x = 1.1 + 0.19
	step(t, g, loss, sgd)
	assert.InDelta(t, 1.29, x.Val().AsFloat32()[0], 1e-6)
}

func TestSGD_DefaultsAndLR(t *testing.T) {
	sgd := optim.NewSGD(nil, optim.SGDConfig{}, cpu.New())
	assert.Equal(t, float32(0.01), sgd.GetLR())
	sgd.SetLR(0.5)
	assert.Equal(t, float32(0.5), sgd.GetLR())
	require.NoError(t, sgd.Step())
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	g, x, loss := negSum(t, []float32{1})
	unused := g.Param("unused", tensor.MustShape(1), []float32{7})
	sgd := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 0.1}, g.Backend())

	step(t, g, loss, sgd)
	assert.InDelta(t, 1.1, x.Val().AsFloat32()[0], 1e-6)
	assert.Equal(t, float32(7), unused.Val().AsFloat32()[0])
}

func TestZeroGrad(t *testing.T) {
	g, x, loss := negSum(t, []float32{1, 2})
	require.NoError(t, g.Forward())
	require.NoError(t, g.Backward(loss))
	require.Equal(t, []float32{-1, -1}, x.Grad().AsFloat32())

	for _, opt := range []optim.Optimizer{
		optim.NewSGD(g.Params(), optim.SGDConfig{}, g.Backend()),
		optim.NewAdam(g.Params(), optim.AdamConfig{}, g.Backend()),
	} {
		opt.ZeroGrad()
		assert.Equal(t, []float32{0, 0}, x.Grad().AsFloat32())
	}
}

func TestAdam_SimpleUpdate(t *testing.T) {
	g, x, loss := negSum(t, []float32{1})
	adam := optim.NewAdam(g.Params(), optim.AdamConfig{LR: 0.001}, g.Backend())
	defer adam.Close()

	// m_hat = -1, v_hat = 1, x_new = 1 + 0.001
	step(t, g, loss, adam)
	assert.InDelta(t, 1.001, x.Val().AsFloat32()[0], 1e-5)
	assert.Equal(t, 1, adam.GetTimestep())
}

func TestAdam_BiasCorrection(t *testing.T) {
	g, x, loss := negSum(t, []float32{1})
	adam := optim.NewAdam(g.Params(), optim.AdamConfig{LR: 0.01}, g.Backend())
	assert.Equal(t, 0, adam.GetTimestep())

	for i := 1; i <= 3; i++ {
		step(t, g, loss, adam)
		assert.Equal(t, i, adam.GetTimestep())
	}
	// A constant gradient moves the parameter by lr per step.
	assert.InDelta(t, 1.03, x.Val().AsFloat32()[0], 1e-4)
}

// TestConvergence_CrossEntropy minimizes -log softmax(w)[0].
func TestConvergence_CrossEntropy(t *testing.T) {
	build := func(t *testing.T) (*graph.Graph, graph.Node) {
		g := graph.New(cpu.New())
		t.Cleanup(func() { _ = g.Close() })
		w := g.Param("w", tensor.MustShape(1, 3), []float32{0, 1, 2})
		logp := g.Transpose(g.LogSoftmax(w))
		loss := g.Neg(g.Rows(logp, []int{0}))
		return g, loss
	}

	t.Run("SGD", func(t *testing.T) {
		g, loss := build(t)
		opt := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 0.5, Momentum: 0.9}, g.Backend())
		first := step(t, g, loss, opt)
		var last float32
		for range 100 {
			last = step(t, g, loss, opt)
		}
		assert.Less(t, last, first)
		assert.Less(t, last, float32(0.05))
	})

	t.Run("Adam", func(t *testing.T) {
		g, loss := build(t)
		opt := optim.NewAdam(g.Params(), optim.AdamConfig{LR: 0.1}, g.Backend())
		first := step(t, g, loss, opt)
		var last float32
		for range 200 {
			last = step(t, g, loss, opt)
		}
		assert.Less(t, last, first)
		assert.Less(t, last, float32(0.05))
	})
}

func TestStepWithClippedGradients(t *testing.T) {
	b := cpu.New()
	b.SetClip(0.25)
	g := graph.New(b)
	defer func() { _ = g.Close() }()
	x := g.Param("x", tensor.MustShape(2), []float32{0, 0})
	loss := g.Sum(g.Neg(x), graph.AllAxes)
	sgd := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 1}, b)

	step(t, g, loss, sgd)
	assert.Equal(t, []float32{0.25, 0.25}, x.Val().AsFloat32())
}
