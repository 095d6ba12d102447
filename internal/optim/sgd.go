package optim

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/graph"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*graph.ParamNode
	lr         float32
	momentum   float32
	velocities slots
	backend    backend.Backend
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD(params []*graph.ParamNode, config SGDConfig, b backend.Backend) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: newSlots(b),
		backend:    b,
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() error {
	s.backend.Synchronize()
	for _, p := range s.params {
		grad := p.Grad()
		if grad == nil {
			// Not reached by the last backward pass.
			continue
		}
		if err := checkParam(p); err != nil {
			return err
		}
		if s.momentum == 0 {
			s.backend.Add(-s.lr, p.Val(), grad)
			continue
		}

		velocity, err := s.velocities.get(p)
		if err != nil {
			return err
		}
		v, g := velocity.AsFloat32(), grad.AsFloat32()
		for i := range v {
			v[i] = s.momentum*v[i] + g[i]
		}
		s.backend.Add(-s.lr, p.Val(), velocity)
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.backend, s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// Close releases the velocity buffers.
func (s *SGD) Close() {
	s.velocities.release()
}
