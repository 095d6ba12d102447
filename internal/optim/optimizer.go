// Package optim implements optimization algorithms that update the
// parameters of an expression graph from the gradients of its last backward
// pass.
//
// Gradients reach the optimizer already clipped: Graph.Backward clips
// parameter adjoints to the backend's clip threshold.
//
// Example usage:
//
//	sgd := optim.NewSGD(g.Params(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, b)
//	for step := range steps {
//	    if err := g.Forward(); err != nil { ... }
//	    if err := g.Backward(loss); err != nil { ... }
//	    if err := sgd.Step(); err != nil { ... }
//	}
package optim

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/graph"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step updates every parameter in place from its current gradient.
	// Parameters without a gradient are skipped.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// slots holds one per-parameter state tensor (velocity, moments), created
// lazily with the parameter's shape.
type slots struct {
	backend backend.Backend
	tensors map[*graph.ParamNode]*tensor.RawTensor
}

func newSlots(b backend.Backend) slots {
	return slots{backend: b, tensors: make(map[*graph.ParamNode]*tensor.RawTensor)}
}

func (s slots) get(p *graph.ParamNode) (*tensor.RawTensor, error) {
	if t, ok := s.tensors[p]; ok {
		return t, nil
	}
	t, err := s.backend.NewTensor(p.Shape())
	if err != nil {
		return nil, errors.WithMessagef(err, "optimizer state for param %q", p.Name())
	}
	s.tensors[p] = t
	return t, nil
}

func (s slots) release() {
	for p, t := range s.tensors {
		t.Release()
		delete(s.tensors, p)
	}
}

// zeroGrads fills the existing gradients of params with zeros.
func zeroGrads(b backend.Backend, params []*graph.ParamNode) {
	for _, p := range params {
		if grad := p.Grad(); grad != nil {
			b.Fill(grad, 0)
		}
	}
}

// checkParam returns an error if p has no value to update.
func checkParam(p *graph.ParamNode) error {
	if p.Val() == nil {
		return errors.Errorf("param %q (node %d) has no value; run a forward pass first", p.Name(), p.ID())
	}
	return nil
}
