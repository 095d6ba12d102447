package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
)

// ElementNode applies a scalar function to every element of its child.
//
// Backward multiplies the adjoint by the derivative, written in terms of the
// forward value where possible (σ' = σ(1-σ), tanh' = 1-tanh², exp' = exp).
// ReLU has derivative 0 at 0. Log divides by the input and is not guarded:
// inputs <= 0 produce non-finite values.
type ElementNode struct {
	node
	op backend.UnaryOp
}

var elementTypes = map[backend.UnaryOp]string{
	backend.Sigmoid: "logit",
	backend.Tanh:    "tanh",
	backend.ReLU:    "ReLU",
	backend.Log:     "log",
	backend.Exp:     "exp",
	backend.Neg:     "-",
}

// Op returns the elementwise function.
func (n *ElementNode) Op() backend.UnaryOp { return n.op }

// Type implements Node.
func (n *ElementNode) Type() string { return elementTypes[n.op] }

// Color implements Node.
func (n *ElementNode) Color() string { return "yellow" }

// ForwardOps implements Node.
func (n *ElementNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() { b.Unary(n.op, n.Val(), x.Val()) },
	}
}

// BackwardOps implements Node.
func (n *ElementNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.UnaryGrad(n.op, x.Grad(), n.Grad(), n.Val(), x.Val()) },
	}
}

func (g *Graph) element(op backend.UnaryOp, x Node) *ElementNode {
	shape := unaryShape(g, elementTypes[op], x)
	n := &ElementNode{node: newNode(g, shape, x), op: op}
	g.add(n)
	return n
}

// Logit adds the logistic sigmoid 1/(1+e^-x).
func (g *Graph) Logit(x Node) *ElementNode { return g.element(backend.Sigmoid, x) }

// Tanh adds the hyperbolic tangent.
func (g *Graph) Tanh(x Node) *ElementNode { return g.element(backend.Tanh, x) }

// ReLU adds max(x, 0).
func (g *Graph) ReLU(x Node) *ElementNode { return g.element(backend.ReLU, x) }

// Log adds the natural logarithm. x must be positive.
func (g *Graph) Log(x Node) *ElementNode { return g.element(backend.Log, x) }

// Exp adds e^x.
func (g *Graph) Exp(x Node) *ElementNode { return g.element(backend.Exp, x) }

// Neg adds -x.
func (g *Graph) Neg(x Node) *ElementNode { return g.element(backend.Neg, x) }
