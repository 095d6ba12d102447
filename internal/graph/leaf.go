package graph

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// leaf is a node whose value is set from the host instead of computed.
type leaf struct {
	node
	init *tensor.RawTensor
}

func newLeaf(g *Graph, init *tensor.RawTensor) leaf {
	if init == nil {
		exceptions.Panicf("graph %s: leaf with nil initial value", g.name)
	}
	if init.DType() == tensor.Int32 {
		exceptions.Panicf("graph %s: leaf values must be floating point, got %s", g.name, init.DType())
	}
	return leaf{node: newNode(g, init.Shape()), init: init}
}

// Allocate creates the value tensor and copies the initial value into it,
// casting float16 data to float32.
func (l *leaf) Allocate(b backend.Backend) error {
	if l.val != nil {
		return nil
	}
	if err := l.node.Allocate(b); err != nil {
		return err
	}
	l.load(b)
	return nil
}

func (l *leaf) load(b backend.Backend) {
	if l.init.DType() == tensor.Float32 {
		b.Copy(l.val, l.init)
	} else {
		b.Cast(l.val, l.init)
	}
}

// set replaces the initial value. If the value tensor exists it is
// overwritten as well.
func (l *leaf) set(b backend.Backend, data []float32) error {
	if len(data) != l.shape.Elements() {
		return errors.Errorf("node %d has shape %s (%d elements), got %d values",
			l.id, l.shape, l.shape.Elements(), len(data))
	}
	init, err := tensor.FromSlice(data, l.shape, tensor.CPU)
	if err != nil {
		return err
	}
	return l.setTensor(b, init)
}

// setTensor is set for a float32 or float16 tensor, taking ownership of t.
func (l *leaf) setTensor(b backend.Backend, t *tensor.RawTensor) error {
	if t.Shape() != l.shape {
		return errors.Errorf("node %d has shape %s, got %s", l.id, l.shape, t.Shape())
	}
	if t.DType() == tensor.Int32 {
		return errors.Errorf("node %d: leaf values must be floating point, got %s", l.id, t.DType())
	}
	l.init.Release()
	l.init = t
	if l.val != nil {
		l.load(b)
	}
	return nil
}

// InputNode is a constant leaf: data fed into the graph that receives no
// gradient.
type InputNode struct {
	leaf
}

// Type implements Node.
func (n *InputNode) Type() string { return "input" }

// Color implements Node.
func (n *InputNode) Color() string { return "white" }

// SetValue replaces the input data. len(data) must match the node's shape.
func (n *InputNode) SetValue(data []float32) error {
	return n.set(n.graph.backend, data)
}

// ParamNode is a trainable leaf. Its value survives Graph.Free and is only
// released by Graph.Close.
type ParamNode struct {
	leaf
	name string
}

// Type implements Node.
func (n *ParamNode) Type() string { return "param" }

// Color implements Node.
func (n *ParamNode) Color() string { return "orangered" }

// Name returns the parameter name.
func (n *ParamNode) Name() string { return n.name }

// SetValue replaces the parameter values. len(data) must match the node's shape.
func (n *ParamNode) SetValue(data []float32) error {
	return n.set(n.graph.backend, data)
}

// SetTensor replaces the parameter values with t, which must have the node's
// shape. Float16 values are cast to float32. The node takes ownership of t.
func (n *ParamNode) SetTensor(t *tensor.RawTensor) error {
	return n.setTensor(n.graph.backend, t)
}

// Values returns a copy of the current values: the trained values once the
// graph is allocated, else the initial ones.
func (n *ParamNode) Values() []float32 {
	if n.val != nil {
		n.graph.backend.Synchronize()
		return n.val.ToFloat32()
	}
	return n.init.ToFloat32()
}

// Free releases only the adjoint: parameters keep their values between passes.
func (n *ParamNode) Free() {
	n.freeAdjoint()
}

func (n *ParamNode) destroy() {
	n.node.Free()
	n.init.Release()
}

func (n *InputNode) destroy() {
	n.node.Free()
	n.init.Release()
}

// Input adds a constant leaf with the given shape and data.
func (g *Graph) Input(shape tensor.Shape, data []float32) *InputNode {
	t, err := tensor.FromSlice(data, shape, tensor.CPU)
	if err != nil {
		exceptions.Panicf("graph %s: input: %v", g.name, err)
	}
	return g.InputTensor(t)
}

// InputTensor adds a constant leaf initialized from t. Float16 data is cast
// to float32 on allocation. The graph takes ownership of t.
func (g *Graph) InputTensor(t *tensor.RawTensor) *InputNode {
	n := &InputNode{leaf: newLeaf(g, t)}
	g.add(n)
	return n
}

// Param adds a trainable leaf with the given name, shape and initial values.
func (g *Graph) Param(name string, shape tensor.Shape, init []float32) *ParamNode {
	t, err := tensor.FromSlice(init, shape, tensor.CPU)
	if err != nil {
		exceptions.Panicf("graph %s: param %q: %v", g.name, name, err)
	}
	n := &ParamNode{leaf: newLeaf(g, t), name: name}
	n.trainable = true
	g.add(n)
	g.params = append(g.params, n)
	return n
}
