package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// NodeOp is a single kernel launch issued by a node's forward or backward
// pass. The ops of one pass are independent and run back to back without
// synchronizing in between.
type NodeOp func()

// Node is one operation of an expression graph.
//
// A node owns a value tensor and an adjoint (gradient) tensor, both
// allocated lazily with the node's shape, and references its children, the
// nodes it reads from. Several parents may share one child.
//
// View nodes (Reshape, Timestep) own no storage: Val and Grad return views
// over the child's tensors.
type Node interface {
	// ID is the position of the node in its graph, which is a topological
	// order: every child has a smaller ID than its parents.
	ID() int

	// Type is the short operation name used in graph dumps.
	Type() string

	// Color is the graphviz fill color used in graph dumps.
	Color() string

	// Shape is the shape of the node's value, fixed at construction.
	Shape() tensor.Shape

	// Children returns the input nodes.
	Children() []Node

	// Trainable reports whether gradients flow through this node.
	Trainable() bool

	// Val returns the value tensor, or nil before Allocate.
	Val() *tensor.RawTensor

	// Grad returns the adjoint tensor, or nil before the backward pass.
	Grad() *tensor.RawTensor

	// Allocate creates the value tensor if it does not exist yet.
	Allocate(b backend.Backend) error

	// Free releases the value and adjoint tensors.
	Free()

	// InitDependent allocates the adjoint and fills it with ones. It is called
	// on the node the backward pass starts from.
	InitDependent(b backend.Backend) error

	// SetZeroAdjoint allocates the adjoint and fills it with zeros.
	SetZeroAdjoint(b backend.Backend) error

	// ForwardOps returns the kernels computing Val from the children's values.
	ForwardOps(b backend.Backend) []NodeOp

	// BackwardOps returns the kernels accumulating Grad into the trainable
	// children's adjoints.
	BackwardOps(b backend.Backend) []NodeOp

	base() *node
}

// node holds the state shared by all node kinds.
type node struct {
	graph     *Graph
	id        int
	shape     tensor.Shape
	children  []Node
	trainable bool
	val, adj  *tensor.RawTensor
}

// newNode checks that all children belong to g and derives trainability
// from them.
func newNode(g *Graph, shape tensor.Shape, children ...Node) node {
	if err := shape.Validate(); err != nil {
		exceptions.Panicf("graph %s: %v", g.name, err)
	}
	n := node{graph: g, id: -1, shape: shape, children: children}
	for _, child := range children {
		if child == nil {
			exceptions.Panicf("graph %s: nil child node", g.name)
		}
		if child.base().graph != g {
			exceptions.Panicf("graph %s: child node %d (%s) belongs to a different graph", g.name, child.ID(), child.Type())
		}
		n.trainable = n.trainable || child.Trainable()
	}
	return n
}

func (n *node) base() *node { return n }

func (n *node) ID() int { return n.id }

func (n *node) Shape() tensor.Shape { return n.shape }

func (n *node) Children() []Node { return n.children }

func (n *node) Trainable() bool { return n.trainable }

func (n *node) Val() *tensor.RawTensor { return n.val }

func (n *node) Grad() *tensor.RawTensor { return n.adj }

// Color is orange unless the node kind overrides it.
func (n *node) Color() string { return "orange" }

func (n *node) Allocate(b backend.Backend) error {
	if n.val != nil {
		return nil
	}
	val, err := b.NewTensor(n.shape)
	if err != nil {
		return errors.WithMessagef(err, "allocating value of node %d", n.id)
	}
	n.val = val
	return nil
}

func (n *node) Free() {
	if n.val != nil {
		n.val.Release()
		n.val = nil
	}
	n.freeAdjoint()
}

func (n *node) freeAdjoint() {
	if n.adj != nil {
		n.adj.Release()
		n.adj = nil
	}
}

func (n *node) allocateAdjoint(b backend.Backend) error {
	if n.adj != nil {
		return nil
	}
	adj, err := b.NewTensor(n.shape)
	if err != nil {
		return errors.WithMessagef(err, "allocating adjoint of node %d", n.id)
	}
	n.adj = adj
	return nil
}

func (n *node) InitDependent(b backend.Backend) error {
	if err := n.allocateAdjoint(b); err != nil {
		return err
	}
	b.Fill(n.adj, 1)
	return nil
}

func (n *node) SetZeroAdjoint(b backend.Backend) error {
	if err := n.allocateAdjoint(b); err != nil {
		return err
	}
	b.Fill(n.adj, 0)
	return nil
}

func (n *node) ForwardOps(backend.Backend) []NodeOp { return nil }

func (n *node) BackwardOps(backend.Backend) []NodeOp { return nil }

// unaryShape panics unless x is a non-nil node and returns its shape.
func unaryShape(g *Graph, kind string, x Node) tensor.Shape {
	if x == nil {
		exceptions.Panicf("graph %s: %s of nil node", g.name, kind)
	}
	return x.Shape()
}
