// Package tokenizer turns text into row indices for embedding lookups.
//
// Token IDs come from an OpenAI tiktoken encoding. An embedding table
// usually has far fewer rows than the encoding has tokens, so RowIndices
// folds the IDs into the table.
//
// Example usage:
//
//	tok, err := tokenizer.NewTikToken("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := tokenizer.RowIndices(tok, "Hello, world!", 512)
//	embedded := g.Rows(table, rows)
package tokenizer

import "github.com/pkg/errors"

// Tokenizer converts between text and token IDs.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int) (string, error)

	// VocabSize returns the total vocabulary size.
	VocabSize() int

	// Name returns the encoding name.
	Name() string
}

// RowIndices encodes text and maps every token ID into [0, rows), ready to
// select rows of an embedding table with that many rows.
func RowIndices(tok Tokenizer, text string, rows int) ([]int, error) {
	if rows <= 0 {
		return nil, errors.Errorf("embedding table needs at least one row, got %d", rows)
	}
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("text %q has no tokens", text)
	}
	for i, id := range ids {
		ids[i] = id % rows
	}
	return ids, nil
}
