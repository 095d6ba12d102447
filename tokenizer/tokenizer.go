// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tokenizer turns text into embedding row indices.
//
// Example:
//
//	tok, err := tokenizer.NewTikToken(tokenizer.EncodingCL100kBase)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := tokenizer.RowIndices(tok, "Hello, world!", table.Shape().Rows())
//	embedded := g.Rows(table, rows)
package tokenizer

import (
	"github.com/born-ml/exprgraph/internal/tokenizer"
)

// Tokenizer converts between text and token IDs.
type Tokenizer = tokenizer.Tokenizer

// TikToken is a Tokenizer backed by an OpenAI tiktoken encoding.
type TikToken = tokenizer.TikToken

// Supported tiktoken encodings.
const (
	EncodingCL100kBase = tokenizer.EncodingCL100kBase
	EncodingP50kBase   = tokenizer.EncodingP50kBase
	EncodingR50kBase   = tokenizer.EncodingR50kBase
)

// NewTikToken loads the named tiktoken encoding.
func NewTikToken(encoding string) (*TikToken, error) {
	return tokenizer.NewTikToken(encoding)
}

// RowIndices encodes text and folds every token ID into [0, rows).
func RowIndices(tok Tokenizer, text string, rows int) ([]int, error) {
	return tokenizer.RowIndices(tok, text, rows)
}
