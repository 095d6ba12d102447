// Package graph implements expression graphs with reverse-mode automatic
// differentiation.
//
// Nodes are added through Graph methods, which check shapes and compute the
// result shape at construction. Because a node can only reference nodes that
// already exist, insertion order is a topological order: Forward runs the
// nodes in that order, Backward runs them in reverse and accumulates every
// node's adjoint into the adjoints of its trainable children.
//
// Example:
//
//	g := graph.New(b)
//	x := g.Input(tensor.MustShape(2, 3), data)
//	w := g.Param("w", tensor.MustShape(2, 3), init)
//	loss := g.Mean(g.Tanh(g.Neg(w)), graph.AllAxes)
//	if err := g.Forward(); err != nil { ... }
//	if err := g.Backward(loss); err != nil { ... }
//	grad := w.Grad()
//
// Invalid construction arguments (shapes, axes, row indices, time steps)
// panic with an error. Kernel failures during a pass are returned as errors.
package graph

import (
	"slices"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Graph owns a set of nodes and runs them on one backend.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	name      string
	backend   backend.Backend
	nodes     []Node
	params    []*ParamNode
	inference bool
	closed    bool
}

// destroyer is implemented by nodes holding more than their tensors.
type destroyer interface {
	destroy()
}

// New creates an empty graph running on b. The graph does not take
// ownership of b.
func New(b backend.Backend) *Graph {
	if b == nil {
		exceptions.Panicf("graph.New: nil backend")
	}
	g := &Graph{name: uuid.NewString(), backend: b}
	klog.V(1).Infof("graph %s: created on %s (%s)", g.name, b.Name(), b.DeviceID())
	return g
}

// NewWithDefaultBackend creates an empty graph on the backend configured by
// the environment (see backend.New). The caller closes g.Backend() when done.
func NewWithDefaultBackend() (*Graph, error) {
	b, err := backend.New()
	if err != nil {
		return nil, errors.WithMessage(err, "graph: default backend")
	}
	return New(b), nil
}

// Name returns the unique name of the graph.
func (g *Graph) Name() string { return g.name }

// Backend returns the backend the graph runs on.
func (g *Graph) Backend() backend.Backend { return g.backend }

// Nodes returns the nodes in topological order.
func (g *Graph) Nodes() []Node { return slices.Clone(g.nodes) }

// Params returns the trainable leaves in creation order.
func (g *Graph) Params() []*ParamNode { return slices.Clone(g.params) }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) add(n Node) {
	if g.closed {
		exceptions.Panicf("graph %s: adding %s node to a closed graph", g.name, n.Type())
	}
	n.base().id = len(g.nodes)
	g.nodes = append(g.nodes, n)
	klog.V(3).Infof("graph %s: node %d %s %s", g.name, n.ID(), n.Type(), n.Shape())
}

// Allocate creates the value tensor of every node that has none.
func (g *Graph) Allocate() error {
	if g.closed {
		return errors.Errorf("graph %s: allocate on closed graph", g.name)
	}
	for _, n := range g.nodes {
		if err := n.Allocate(g.backend); err != nil {
			return errors.WithMessagef(err, "graph %s", g.name)
		}
	}
	klog.V(2).Infof("graph %s: %d nodes, %s allocated", g.name, len(g.nodes), humanize.Bytes(uint64(g.MemoryBytes())))
	return nil
}

// MemoryBytes returns the bytes held by node values and adjoints. Views are
// not counted.
func (g *Graph) MemoryBytes() int {
	var total int
	for _, n := range g.nodes {
		if _, isView := n.(*ViewNode); isView {
			continue
		}
		base := n.base()
		if base.val != nil {
			total += base.val.ByteSize()
		}
		if base.adj != nil {
			total += base.adj.ByteSize()
		}
	}
	return total
}

// Forward computes every node's value in training mode.
func (g *Graph) Forward() error {
	return g.forward(false)
}

// Inference computes every node's value in inference mode: dropout copies
// its input instead of masking it.
func (g *Graph) Inference() error {
	return g.forward(true)
}

func (g *Graph) forward(inference bool) error {
	if err := g.Allocate(); err != nil {
		return err
	}
	g.inference = inference
	g.backend.SetDevice()
	err := exceptions.TryCatch[error](func() {
		for _, n := range g.nodes {
			g.run(n, n.ForwardOps(g.backend))
		}
	})
	g.backend.Synchronize()
	if err != nil {
		return errors.WithMessagef(err, "graph %s: forward pass", g.name)
	}
	klog.V(1).Infof("graph %s: forward pass over %d nodes (inference=%v)", g.name, len(g.nodes), inference)
	return nil
}

func (g *Graph) run(n Node, ops []NodeOp) {
	if len(ops) > 0 {
		klog.V(3).Infof("graph %s: node %d %s: %d ops", g.name, n.ID(), n.Type(), len(ops))
	}
	for _, op := range ops {
		op()
	}
}

// Backward computes the gradient of top with respect to every trainable node
// created before it. The adjoint of top is seeded with ones, so a non-scalar
// top differentiates the sum of its elements. Only nodes top depends on run
// their backward ops; every other trainable node ends with a zero adjoint.
//
// Forward must have run. When the backend clip is positive, parameter
// gradients are clipped to [-clip, clip] afterwards.
func (g *Graph) Backward(top Node) error {
	if g.closed {
		return errors.Errorf("graph %s: backward on closed graph", g.name)
	}
	if top == nil || top.base().graph != g {
		return errors.Errorf("graph %s: backward from a node of another graph", g.name)
	}
	if top.Val() == nil {
		return errors.Errorf("graph %s: backward from node %d before forward", g.name, top.ID())
	}
	if !top.Trainable() {
		klog.V(1).Infof("graph %s: node %d does not depend on any parameter, nothing to do", g.name, top.ID())
		return nil
	}

	b := g.backend
	b.SetDevice()
	err := exceptions.TryCatch[error](func() {
		for _, n := range g.nodes[:top.ID()] {
			if n.Trainable() {
				panicOnError(n.SetZeroAdjoint(b))
			}
		}
		panicOnError(top.InitDependent(b))
		reached := ancestors(top)
		for i := top.ID(); i >= 0; i-- {
			if n := g.nodes[i]; reached[i] && n.Trainable() {
				g.run(n, n.BackwardOps(b))
			}
		}
		if clip := b.Clip(); clip > 0 {
			for _, p := range g.params {
				if p.ID() <= top.ID() && reached[p.ID()] && p.Grad() != nil {
					b.ClipValues(p.Grad(), clip)
				}
			}
		}
	})
	b.Synchronize()
	if err != nil {
		return errors.WithMessagef(err, "graph %s: backward pass", g.name)
	}
	klog.V(1).Infof("graph %s: backward pass from node %d (%s)", g.name, top.ID(), top.Type())
	return nil
}

// ancestors marks, by node id, top and every node it transitively reads.
func ancestors(top Node) []bool {
	reached := make([]bool, top.ID()+1)
	reached[top.ID()] = true
	stack := []Node{top}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range n.Children() {
			if !reached[child.ID()] {
				reached[child.ID()] = true
				stack = append(stack, child)
			}
		}
	}
	return reached
}

func panicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// Free releases the values and adjoints of all nodes except parameter
// values. The graph can run again afterwards.
func (g *Graph) Free() {
	for i := len(g.nodes) - 1; i >= 0; i-- {
		g.nodes[i].Free()
	}
	klog.V(2).Infof("graph %s: freed intermediate tensors", g.name)
}

// Close releases every resource held by the nodes, including parameter
// values and dropout state. Closing twice is a no-op. The backend stays open.
func (g *Graph) Close() error {
	if g.closed {
		return nil
	}
	for i := len(g.nodes) - 1; i >= 0; i-- {
		if d, ok := g.nodes[i].(destroyer); ok {
			d.destroy()
		} else {
			g.nodes[i].Free()
		}
	}
	g.closed = true
	klog.V(1).Infof("graph %s: closed", g.name)
	return nil
}
