package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/gomlx/exceptions"
)

// ViewNode reinterprets its child's storage with a new shape, starting at an
// element offset. It owns no memory and runs no kernels: Val and Grad are
// views over the child's value and adjoint, so writes through either side
// are visible on the other.
//
// Views hold a reference on the child's buffers, so freeing the child does
// not invalidate memory a view still reads. The child must still outlive the
// view for the view to observe current data: after the child is freed and
// reallocated, the next Val or Grad call re-targets the view.
type ViewNode struct {
	node
	step   int // -1 for reshapes.
	offset int
}

// Type implements Node.
func (n *ViewNode) Type() string {
	if n.step >= 0 {
		return "step"
	}
	return "reshape"
}

// Color implements Node.
func (n *ViewNode) Color() string { return "grey" }

// Offset returns the element offset of the view inside the child.
func (n *ViewNode) Offset() int { return n.offset }

// Val returns a view over the child's value, or nil if it has none.
func (n *ViewNode) Val() *tensor.RawTensor {
	n.val = n.retarget(n.val, n.children[0].Val())
	return n.val
}

// Grad returns a view over the child's adjoint, or nil if it has none.
func (n *ViewNode) Grad() *tensor.RawTensor {
	n.adj = n.retarget(n.adj, n.children[0].Grad())
	return n.adj
}

// retarget returns cached if it still views src, else a fresh view of src.
func (n *ViewNode) retarget(cached, src *tensor.RawTensor) *tensor.RawTensor {
	if cached != nil {
		if src != nil && cached.SharesStorage(src) && cached.Offset() == src.Offset()+n.offset {
			return cached
		}
		cached.Release()
	}
	if src == nil {
		return nil
	}
	v, err := src.View(n.shape, n.offset)
	if err != nil {
		exceptions.Panicf("%s node %d: %v", n.Type(), n.id, err)
	}
	return v
}

// Allocate does nothing: the child provides the storage.
func (n *ViewNode) Allocate(backend.Backend) error { return nil }

// InitDependent starts the backward pass at this view. The child's adjoint
// is cleared and the viewed part set to ones.
func (n *ViewNode) InitDependent(b backend.Backend) error {
	x := n.children[0]
	if n.step < 0 {
		return x.InitDependent(b)
	}
	if err := x.SetZeroAdjoint(b); err != nil {
		return err
	}
	b.Fill(n.Grad(), 1)
	return nil
}

// SetZeroAdjoint clears the child's adjoint.
func (n *ViewNode) SetZeroAdjoint(b backend.Backend) error {
	return n.children[0].SetZeroAdjoint(b)
}

// Reshape adds a view of x with the given shape, which must have as many
// elements as x.
func (g *Graph) Reshape(x Node, shape tensor.Shape) *ViewNode {
	in := unaryShape(g, "reshape", x)
	if err := shape.Validate(); err != nil {
		exceptions.Panicf("graph %s: reshape: %v", g.name, err)
	}
	if shape.Elements() != in.Elements() {
		exceptions.Panicf("graph %s: cannot reshape %s (%d elements) to %s (%d elements)",
			g.name, in, in.Elements(), shape, shape.Elements())
	}
	n := &ViewNode{node: newNode(g, shape, x), step: -1}
	g.add(n)
	return n
}

// Timestep adds a view of one matrix of x: axes 2 and 3 are flattened into
// a step index and the result has shape [rows cols 1 1].
func (g *Graph) Timestep(x Node, step int) *ViewNode {
	in := unaryShape(g, "step", x)
	if step < 0 || step >= in.Matrices() {
		exceptions.Panicf("graph %s: time step %d out of range for %s", g.name, step, in)
	}
	shape := in.Set(2, 1).Set(3, 1)
	n := &ViewNode{node: newNode(g, shape, x), step: step, offset: step * shape.Elements()}
	g.add(n)
	return n
}
