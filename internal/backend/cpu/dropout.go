package cpu

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// dropoutState holds the mask of the last forward call and the random
// source it was drawn from.
type dropoutState struct {
	p     float32
	shape tensor.Shape
	rng   *rand.Rand
	mask  []float32
}

// Probability returns the drop probability.
func (s *dropoutState) Probability() float32 {
	return s.p
}

func (cpu *Backend) dropoutState(state backend.DropoutState, n int) *dropoutState {
	s, ok := state.(*dropoutState)
	if !ok || s == nil {
		panic(errors.Errorf("dropout: state %T was not created by the cpu backend", state))
	}
	if s.mask == nil {
		panic(errors.New("dropout: state used after destroy"))
	}
	if len(s.mask) != n {
		panic(errors.Errorf("dropout: state prepared for %s, got %d elements", s.shape, n))
	}
	return s
}

// DropoutPrepare allocates the mask buffer and a random source seeded with seed.
func (cpu *Backend) DropoutPrepare(shape tensor.Shape, p float32, seed uint64) (backend.DropoutState, error) {
	if p < 0 || p > 1 {
		return nil, errors.Errorf("dropout probability %g outside [0, 1]", p)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "dropout")
	}
	return &dropoutState{
		p:     p,
		shape: shape,
		rng:   rand.New(rand.NewSource(seed)),
		mask:  make([]float32, shape.Elements()),
	}, nil
}

// DropoutForward draws a fresh mask and computes out = in ⊙ mask.
// Kept elements are scaled by 1/(1-p) so the expected value is unchanged.
func (cpu *Backend) DropoutForward(state backend.DropoutState, out, in *tensor.RawTensor) {
	checkSameElements("dropout", out, in)
	s := cpu.dropoutState(state, in.NumElements())
	switch {
	case s.p == 0:
		for i := range s.mask {
			s.mask[i] = 1
		}
	case s.p >= 1:
		for i := range s.mask {
			s.mask[i] = 0
		}
	default:
		scale := 1 / (1 - s.p)
		for i := range s.mask {
			if s.rng.Float32() < s.p {
				s.mask[i] = 0
			} else {
				s.mask[i] = scale
			}
		}
	}
	x, y := in.AsFloat32(), out.AsFloat32()
	for i, m := range s.mask {
		y[i] = x[i] * m
	}
}

// DropoutBackward computes grad += adj ⊙ mask.
func (cpu *Backend) DropoutBackward(state backend.DropoutState, grad, adj *tensor.RawTensor) {
	checkSameElements("dropout grad", grad, adj)
	s := cpu.dropoutState(state, adj.NumElements())
	g, dy := grad.AsFloat32(), adj.AsFloat32()
	for i, m := range s.mask {
		g[i] += dy[i] * m
	}
}

// DropoutDestroy drops the mask buffer and random source.
func (cpu *Backend) DropoutDestroy(state backend.DropoutState) {
	if s, ok := state.(*dropoutState); ok && s != nil {
		s.mask = nil
		s.rng = nil
	}
}
