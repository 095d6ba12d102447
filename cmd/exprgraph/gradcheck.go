package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/born-ml/exprgraph/backend"
	"github.com/born-ml/exprgraph/graph"
	"github.com/born-ml/exprgraph/tensor"
	"github.com/pkg/errors"
)

// gradCase builds the node under test on top of the parameter x, of shape
// [3 4 1 1] with positive entries.
type gradCase struct {
	name  string
	build func(g *graph.Graph, x *graph.ParamNode) graph.Node
}

var gradCases = []gradCase{
	{"logit", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Logit(x) }},
	{"tanh", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Tanh(x) }},
	{"relu", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.ReLU(g.Exp(g.Neg(x))) }},
	{"log", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Log(x) }},
	{"exp", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Exp(x) }},
	{"neg", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Neg(x) }},
	{"softmax", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Softmax(x) }},
	{"masked-softmax", func(g *graph.Graph, x *graph.ParamNode) graph.Node {
		mask := g.Input(tensor.MustShape(1, 4), []float32{1, 0, 1, 1})
		return g.MaskedSoftmax(x, mask)
	}},
	{"logsoftmax", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.LogSoftmax(x) }},
	{"sum", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Sum(x, 0) }},
	{"mean", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Mean(x, 1) }},
	{"rows", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Rows(x, []int{0, 2, 2}) }},
	{"transpose", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Transpose(x) }},
	{"reshape", func(g *graph.Graph, x *graph.ParamNode) graph.Node {
		return g.Reshape(x, tensor.MustShape(4, 3))
	}},
	{"step", func(g *graph.Graph, x *graph.ParamNode) graph.Node {
		return g.Timestep(g.Reshape(x, tensor.MustShape(3, 2, 2)), 1)
	}},
	{"dropout", func(g *graph.Graph, x *graph.ParamNode) graph.Node { return g.Dropout(x, 0) }},
}

func runGradCheck(b backend.Backend, args []string) error {
	fs := flag.NewFlagSet("gradcheck", flag.ExitOnError)
	eps := fs.Float64("eps", 1e-2, "Finite-difference step.")
	tol := fs.Float64("tol", 1e-2, "Largest accepted absolute difference.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "node\tmax abs error\tstatus")
	var failed []string
	for _, c := range gradCases {
		maxErr, err := checkCase(b, c, float32(*eps))
		if err != nil {
			return errors.WithMessagef(err, "node %s", c.name)
		}
		status := "ok"
		if maxErr > *tol {
			status = "FAIL"
			failed = append(failed, c.name)
		}
		fmt.Fprintf(w, "%s\t%.2e\t%s\n", c.name, maxErr, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return errors.Errorf("gradient mismatch above %g for %v", *tol, failed)
	}
	return nil
}

// checkCase differentiates tanh(node) so reductions with constant sums
// (softmax rows) still have a non-trivial gradient.
func checkCase(b backend.Backend, c gradCase, eps float32) (float64, error) {
	g := graph.New(b)
	defer func() { _ = g.Close() }()

	init := make([]float32, 12)
	for i := range init {
		init[i] = 0.2 + 0.1*float32(i)
	}
	x := g.Param("x", tensor.MustShape(3, 4), init)
	top := g.Tanh(c.build(g, x))
	res, err := g.CheckGradient(top, x, eps)
	if err != nil {
		return 0, err
	}
	return res.MaxAbsError, nil
}
