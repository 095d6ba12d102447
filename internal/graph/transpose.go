package graph

import "github.com/born-ml/exprgraph/internal/backend"

// TransposeNode swaps axes 0 and 1 of every stacked matrix.
type TransposeNode struct {
	node
}

// Type implements Node.
func (n *TransposeNode) Type() string { return "transpose" }

// ForwardOps implements Node.
func (n *TransposeNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() { b.Transpose(n.Val(), x.Val(), 0) },
	}
}

// BackwardOps implements Node. The gradient of a transpose is the transposed
// adjoint.
func (n *TransposeNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.Transpose(x.Grad(), n.Grad(), 1) },
	}
}

// Transpose adds xᵀ, swapping axes 0 and 1.
func (g *Graph) Transpose(x Node) *TransposeNode {
	shape := unaryShape(g, "transpose", x)
	n := &TransposeNode{node: newNode(g, shape.Set(0, shape.Cols()).Set(1, shape.Rows()), x)}
	g.add(n)
	return n
}
