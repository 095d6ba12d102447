package main

import (
	"flag"
	"io"
	"os"

	"github.com/born-ml/exprgraph/backend"
	"github.com/born-ml/exprgraph/graph"
	"github.com/born-ml/exprgraph/tensor"
	"github.com/pkg/errors"
)

func runDot(b backend.Backend, args []string) error {
	fs := flag.NewFlagSet("dot", flag.ExitOnError)
	output := fs.String("o", "", "Output file. Defaults to stdout.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return errors.Wrapf(err, "creating %s", *output)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	g := graph.New(b)
	defer func() { _ = g.Close() }()
	buildDemo(g)
	return g.Dot(w)
}

// buildDemo builds a small attention-flavoured loss touching most node kinds.
func buildDemo(g *graph.Graph) graph.Node {
	table := g.Param("embeddings", tensor.MustShape(6, 4), make([]float32, 24))
	tokens := g.Rows(table, []int{1, 3, 3})
	scores := g.Transpose(g.Tanh(tokens))
	mask := g.Input(tensor.MustShape(1, 3), []float32{1, 1, 0})
	attention := g.Dropout(g.MaskedSoftmax(scores, mask), 0.1)
	logp := g.LogSoftmax(g.Reshape(attention, tensor.MustShape(3, 4)))
	return g.Neg(g.Mean(logp, graph.AllAxes))
}
