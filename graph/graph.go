// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds expression graphs and differentiates them.
//
// Nodes are created through a Graph, which records them in creation order.
// Since a node can only reference nodes created before it, that order is
// topological: Forward runs it front to back, Backward back to front.
//
// Example:
//
//	g := graph.New(cpu.New())
//	defer g.Close()
//
//	w := g.Param("w", tensor.MustShape(1, 3), []float32{0, 1, 2})
//	loss := g.Neg(g.Rows(g.Transpose(g.LogSoftmax(w)), []int{0}))
//	if err := g.Forward(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := g.Backward(loss); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(w.Grad().AsFloat32())
package graph

import (
	"github.com/born-ml/exprgraph/backend"
	"github.com/born-ml/exprgraph/internal/graph"
	"github.com/born-ml/exprgraph/internal/serialization"
)

// Graph owns the nodes of one expression and drives their passes.
type Graph = graph.Graph

// Node is a vertex of the graph.
type Node = graph.Node

// NodeOp is one deferred kernel launch.
type NodeOp = graph.NodeOp

// Node kinds.
type (
	InputNode      = graph.InputNode
	ParamNode      = graph.ParamNode
	ElementNode    = graph.ElementNode
	SoftmaxNode    = graph.SoftmaxNode
	LogSoftmaxNode = graph.LogSoftmaxNode
	ReduceNode     = graph.ReduceNode
	DropoutNode    = graph.DropoutNode
	RowsNode       = graph.RowsNode
	TransposeNode  = graph.TransposeNode
	ViewNode       = graph.ViewNode
)

// GradCheck compares the analytic and numeric gradient of a parameter.
type GradCheck = graph.GradCheck

// AllAxes makes Sum and Mean reduce over every axis.
const AllAxes = graph.AllAxes

// New creates an empty graph running on b.
func New(b backend.Backend) *Graph {
	return graph.New(b)
}

// NewWithDefaultBackend creates an empty graph on the backend configured by
// the environment (see backend.New).
func NewWithDefaultBackend() (*Graph, error) {
	return graph.NewWithDefaultBackend()
}

// SaveOptions configures SaveParams.
type SaveOptions = serialization.SaveOptions

// SaveParams writes the current values of every parameter of g to path in
// SafeTensors format.
func SaveParams(path string, g *Graph, opts SaveOptions) error {
	return serialization.SaveParams(path, g.Params(), opts)
}

// LoadParams restores every parameter of g, matched by name, from a
// SafeTensors file written by SaveParams.
func LoadParams(path string, g *Graph) error {
	return serialization.LoadParams(path, g.Params())
}
