package graph

import (
	"math"

	"github.com/pkg/errors"
)

// GradCheck is the result of comparing analytic and numeric gradients.
type GradCheck struct {
	Analytic []float32
	Numeric  []float32
	// MaxAbsError is the largest absolute difference between the two.
	MaxAbsError float64
}

// CheckGradient compares the gradient Backward computes for p with central
// finite differences of the sum of top's elements, perturbing each element
// of p by ±eps.
//
// Gradient clipping is disabled while the check runs and restored after it.
// The graph must be deterministic: dropout with 0 < p < 1 draws a new mask
// on every forward pass and fails the check.
func (g *Graph) CheckGradient(top Node, p *ParamNode, eps float32) (*GradCheck, error) {
	if eps <= 0 {
		return nil, errors.Errorf("gradient check needs eps > 0, got %g", eps)
	}
	clip := g.backend.Clip()
	g.backend.SetClip(0)
	defer g.backend.SetClip(clip)

	if err := g.Forward(); err != nil {
		return nil, err
	}
	if err := g.Backward(top); err != nil {
		return nil, err
	}
	if p.Grad() == nil {
		return nil, errors.Errorf("param %q (node %d) received no gradient from node %d", p.Name(), p.ID(), top.ID())
	}

	res := &GradCheck{Analytic: p.Grad().ToFloat32()}
	res.Numeric = make([]float32, len(res.Analytic))
	values := p.Val().AsFloat32()
	for i, orig := range values {
		values[i] = orig + eps
		plus, err := g.sumAfterForward(top)
		if err != nil {
			return nil, err
		}
		values[i] = orig - eps
		minus, err := g.sumAfterForward(top)
		if err != nil {
			return nil, err
		}
		values[i] = orig

		res.Numeric[i] = float32((plus - minus) / (2 * float64(eps)))
		res.MaxAbsError = math.Max(res.MaxAbsError, math.Abs(float64(res.Numeric[i]-res.Analytic[i])))
	}
	// Leave the values consistent with the restored parameters.
	if err := g.Forward(); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Graph) sumAfterForward(top Node) (float64, error) {
	if err := g.Forward(); err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range top.Val().AsFloat32() {
		sum += float64(v)
	}
	return sum, nil
}
