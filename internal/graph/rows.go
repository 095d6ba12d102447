package graph

import (
	"slices"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// RowsNode gathers rows (axis 0) of its input by index. Indices may repeat;
// the gradients of repeated rows add up.
type RowsNode struct {
	node
	indices []int
	idx     *tensor.RawTensor // Int32 copy of indices, created by Allocate.
}

// Type implements Node.
func (n *RowsNode) Type() string { return "rows" }

// Indices returns a copy of the selected row indices.
func (n *RowsNode) Indices() []int { return slices.Clone(n.indices) }

// Allocate implements Node.
func (n *RowsNode) Allocate(b backend.Backend) error {
	if n.idx == nil {
		idx, err := tensor.FromIndices(n.indices, b.DeviceID().Type)
		if err != nil {
			return errors.WithMessagef(err, "rows node %d", n.id)
		}
		n.idx = idx
	}
	return n.node.Allocate(b)
}

// Free implements Node.
func (n *RowsNode) Free() {
	n.node.Free()
	if n.idx != nil {
		n.idx.Release()
		n.idx = nil
	}
}

// ForwardOps implements Node.
func (n *RowsNode) ForwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	return []NodeOp{
		func() { b.CopyRows(n.Val(), x.Val(), n.idx) },
	}
}

// BackwardOps implements Node.
func (n *RowsNode) BackwardOps(b backend.Backend) []NodeOp {
	x := n.children[0]
	if !x.Trainable() {
		return nil
	}
	return []NodeOp{
		func() { b.PasteRows(x.Grad(), n.Grad(), n.idx) },
	}
}

// Rows adds the rows of x selected by indices, in order.
func (g *Graph) Rows(x Node, indices []int) *RowsNode {
	shape := unaryShape(g, "rows", x)
	if len(indices) == 0 {
		exceptions.Panicf("graph %s: rows with no indices", g.name)
	}
	for _, i := range indices {
		if i < 0 || i >= shape.Rows() {
			exceptions.Panicf("graph %s: row index %d out of range for %s", g.name, i, shape)
		}
	}
	n := &RowsNode{
		node:    newNode(g, shape.Set(0, len(indices)), x),
		indices: slices.Clone(indices),
	}
	g.add(n)
	return n
}
