package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/gomlx/exceptions"
)

// AllAxes selects a reduction over every axis.
const AllAxes = -1

// ReduceNode sums (or averages) its input over one axis or all of them.
// The reduced axes have size 1 in the result.
type ReduceNode struct {
	node
	axis int
	mean bool
}

// Type implements Node.
func (n *ReduceNode) Type() string {
	if n.mean {
		return "mean"
	}
	return "sum"
}

// Axis returns the reduced axis, or AllAxes.
func (n *ReduceNode) Axis() int { return n.axis }

// scale is 1 for sums and 1/(elements reduced into each output) for means.
func (n *ReduceNode) scale() float32 {
	if !n.mean {
		return 1
	}
	left := n.children[0].Shape().Elements() / n.shape.Elements()
	return 1 / float32(left)
}

// ForwardOps implements Node.
func (n *ReduceNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() { b.Reduce(n.scale(), n.Val(), x.Val()) },
	}
}

// BackwardOps implements Node. The adjoint is broadcast back over the
// reduced axes.
func (n *ReduceNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.Add(n.scale(), x.Grad(), n.Grad()) },
	}
}

func (g *Graph) reduce(kind string, x Node, axis int, mean bool) *ReduceNode {
	shape := unaryShape(g, kind, x)
	switch {
	case axis == AllAxes:
		shape = tensor.Shape{1, 1, 1, 1}
	case axis >= 0 && axis < tensor.MaxAxes:
		shape = shape.Set(axis, 1)
	default:
		exceptions.Panicf("graph %s: %s over axis %d, want 0..%d or AllAxes", g.name, kind, axis, tensor.MaxAxes-1)
	}
	n := &ReduceNode{node: newNode(g, shape, x), axis: axis, mean: mean}
	g.add(n)
	return n
}

// Sum adds the sum of x over axis, or over all axes with AllAxes.
func (g *Graph) Sum(x Node, axis int) *ReduceNode { return g.reduce("sum", x, axis, false) }

// Mean adds the mean of x over axis, or over all axes with AllAxes.
func (g *Graph) Mean(x Node, axis int) *ReduceNode { return g.reduce("mean", x, axis, true) }
