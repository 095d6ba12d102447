package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/gomlx/exceptions"
)

// SoftmaxNode normalizes every row (axis 1) of its input into a probability
// distribution. With a mask, columns where the mask is 0 are exactly 0.
//
// The mask is a second child with the same number of columns whose rows
// repeat over the input rows. No gradient flows into it.
type SoftmaxNode struct {
	node
	mask Node
}

// Type implements Node.
func (n *SoftmaxNode) Type() string { return "softmax" }

// Mask returns the mask node, or nil.
func (n *SoftmaxNode) Mask() Node { return n.mask }

// ForwardOps implements Node.
func (n *SoftmaxNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() {
			if n.mask != nil {
				b.Softmax(n.Val(), x.Val(), n.mask.Val())
				return
			}
			b.Softmax(n.Val(), x.Val(), nil)
		},
	}
}

// BackwardOps implements Node. The masked columns of the value are already
// zero, so the mask is not needed here.
func (n *SoftmaxNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.SoftmaxGrad(x.Grad(), n.Grad(), n.Val()) },
	}
}

// Softmax adds a row-wise softmax of x.
func (g *Graph) Softmax(x Node) *SoftmaxNode {
	shape := unaryShape(g, "softmax", x)
	n := &SoftmaxNode{node: newNode(g, shape, x)}
	g.add(n)
	return n
}

// MaskedSoftmax adds a row-wise softmax of x restricted to the columns where
// mask is non-zero. A row with every column masked is all zeros.
func (g *Graph) MaskedSoftmax(x, mask Node) *SoftmaxNode {
	shape := unaryShape(g, "softmax", x)
	if mask == nil {
		exceptions.Panicf("graph %s: softmax with nil mask", g.name)
	}
	ms := mask.Shape()
	rows := shape.Elements() / shape.Cols()
	maskRows := ms.Elements() / ms.Cols()
	if ms.Cols() != shape.Cols() || rows%maskRows != 0 {
		exceptions.Panicf("graph %s: softmax mask %s does not fit input %s", g.name, ms, shape)
	}
	n := &SoftmaxNode{node: newNode(g, shape, x, mask), mask: mask}
	// The mask only selects columns.
	n.trainable = x.Trainable()
	g.add(n)
	return n
}

// LogSoftmaxNode computes log(softmax(x)) per row without forming the
// probabilities.
type LogSoftmaxNode struct {
	node
}

// Type implements Node.
func (n *LogSoftmaxNode) Type() string { return "logsoftmax" }

// ForwardOps implements Node.
func (n *LogSoftmaxNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() { b.LogSoftmax(n.Val(), x.Val()) },
	}
}

// BackwardOps implements Node.
func (n *LogSoftmaxNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.LogSoftmaxGrad(x.Grad(), n.Grad(), n.Val()) },
	}
}

// LogSoftmax adds a row-wise log-softmax of x.
func (g *Graph) LogSoftmax(x Node) *LogSoftmaxNode {
	shape := unaryShape(g, "logsoftmax", x)
	n := &LogSoftmaxNode{node: newNode(g, shape, x)}
	g.add(n)
	return n
}
