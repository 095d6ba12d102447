package main

import (
	"flag"
	"fmt"
	"math"

	"github.com/born-ml/exprgraph/backend"
	"github.com/born-ml/exprgraph/graph"
	"github.com/born-ml/exprgraph/internal/serialization"
	"github.com/born-ml/exprgraph/tensor"
	"github.com/born-ml/exprgraph/tokenizer"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

func runEmbed(b backend.Backend, args []string) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	text := fs.String("text", "Hello, world!", "Text to embed.")
	encoding := fs.String("encoding", tokenizer.EncodingCL100kBase, "tiktoken encoding.")
	rows := fs.Int("rows", 64, "Rows of the embedding table.")
	dim := fs.Int("dim", 8, "Columns of the embedding table.")
	load := fs.String("load", "", "SafeTensors file with an \"embeddings\" table. Overrides -rows and -dim.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *load != "" {
		r, err := serialization.Open(*load)
		if err != nil {
			return err
		}
		info, err := r.Info("embeddings")
		_ = r.Close()
		if err != nil {
			return err
		}
		if len(info.Shape) != 2 {
			return errors.Errorf("embeddings in %s have shape %v, want [rows, dim]", *load, info.Shape)
		}
		*rows, *dim = info.Shape[0], info.Shape[1]
	}

	tok, err := tokenizer.NewTikToken(*encoding)
	if err != nil {
		return err
	}
	indices, err := tokenizer.RowIndices(tok, *text, *rows)
	if err != nil {
		return err
	}

	g := graph.New(b)
	defer func() { _ = g.Close() }()
	shape := tensor.MustShape(*rows, *dim)
	table := g.Param("embeddings", shape, randomTable(shape.Elements(), b.Seed()))
	mean := g.Mean(g.Rows(table, indices), 0)
	if *load != "" {
		if err := graph.LoadParams(*load, g); err != nil {
			return err
		}
	}
	if err := g.Inference(); err != nil {
		return errors.WithMessage(err, "embedding lookup")
	}

	fmt.Printf("tokens (%s): %d\n", tok.Name(), len(indices))
	fmt.Printf("rows: %v\n", indices)
	fmt.Printf("mean embedding %s: %.4f\n", mean.Shape(), mean.Val().ToFloat32())
	return nil
}

// randomTable draws n values from N(0, 1/sqrt(n)).
func randomTable(n int, seed uint64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	scale := 1 / math.Sqrt(float64(n))
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(rng.NormFloat64() * scale)
	}
	return values
}
