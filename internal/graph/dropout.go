package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// DropoutNode zeroes each element of its input with probability p during
// training and scales the kept ones by 1/(1-p). In inference passes it
// copies the input unchanged.
//
// The mask buffer and random source are created on the first training
// forward pass and kept until the graph is closed. The random source is
// seeded from the backend seed and the node ID, so runs are reproducible.
type DropoutNode struct {
	node
	p float32

	initialized bool
	backend     backend.Backend
	state       backend.DropoutState
	masked      bool // Whether the last forward pass applied a mask.
}

// Type implements Node.
func (n *DropoutNode) Type() string { return "dropout" }

// Probability returns the drop probability.
func (n *DropoutNode) Probability() float32 { return n.p }

// seed mixes the node ID into the backend seed.
func (n *DropoutNode) seed(b backend.Backend) uint64 {
	return b.Seed() ^ (uint64(n.id+1) * 0x9e3779b97f4a7c15)
}

// ensureInitialized creates the dropout state once.
func (n *DropoutNode) ensureInitialized(b backend.Backend) {
	if n.initialized {
		return
	}
	state, err := b.DropoutPrepare(n.shape, n.p, n.seed(b))
	if err != nil {
		exceptions.Panicf("dropout node %d: %v", n.id, err)
	}
	n.backend, n.state, n.initialized = b, state, true
	klog.V(2).Infof("dropout node %d: prepared state for %s with p=%g", n.id, n.shape, n.p)
}

// ForwardOps implements Node.
func (n *DropoutNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if n.graph.inference {
		return []NodeOp{
			func() {
				b.Copy(n.Val(), x.Val())
				n.masked = false
			},
		}
	}
	return []NodeOp{
		func() {
			n.ensureInitialized(b)
			b.DropoutForward(n.state, n.Val(), x.Val())
			n.masked = true
		},
	}
}

// BackwardOps implements Node. The adjoint goes through the mask drawn by
// the last forward pass.
func (n *DropoutNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() {
			if n.masked {
				b.DropoutBackward(n.state, x.Grad(), n.Grad())
				return
			}
			b.Add(1, x.Grad(), n.Grad())
		},
	}
}

// destroy releases the tensors and, if it was created, the dropout state.
func (n *DropoutNode) destroy() {
	n.node.Free()
	if n.initialized {
		n.backend.DropoutDestroy(n.state)
		n.state, n.backend, n.initialized, n.masked = nil, nil, false, false
	}
}

// Dropout adds a dropout of x with drop probability p in [0, 1].
func (g *Graph) Dropout(x Node, p float32) *DropoutNode {
	shape := unaryShape(g, "dropout", x)
	if p < 0 || p > 1 {
		exceptions.Panicf("graph %s: dropout probability %g outside [0, 1]", g.name, p)
	}
	n := &DropoutNode{node: newNode(g, shape, x), p: p}
	g.add(n)
	return n
}
