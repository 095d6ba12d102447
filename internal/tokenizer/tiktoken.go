package tokenizer

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// EncodingCL100kBase is the encoding of GPT-4 and GPT-3.5-turbo.
	EncodingCL100kBase = "cl100k_base"
	// EncodingP50kBase is the encoding of GPT-3 and Codex.
	EncodingP50kBase = "p50k_base"
	// EncodingR50kBase is the encoding of older GPT-3 models.
	EncodingR50kBase = "r50k_base"
)

// vocabSizes lists the number of regular tokens per encoding.
var vocabSizes = map[string]int{
	EncodingCL100kBase: 100256,
	EncodingP50kBase:   50257,
	EncodingR50kBase:   50257,
}

// TikToken wraps pkoukk/tiktoken-go.
//
// Loading an encoding downloads its BPE ranks on first use unless they are
// cached (see the TIKTOKEN_CACHE_DIR environment variable).
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiktoken encoding %q", encodingName)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to token IDs. Special tokens are encoded as text.
func (t *TikToken) Encode(text string) ([]int, error) {
	return t.encoding.Encode(text, nil, nil), nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int) (string, error) {
	for _, tok := range tokens {
		if tok < 0 {
			return "", errors.Errorf("negative token id %d", tok)
		}
	}
	return t.encoding.Decode(slices.Clone(tokens)), nil
}

// VocabSize returns the number of regular tokens of the encoding.
func (t *TikToken) VocabSize() int {
	if n, ok := vocabSizes[t.name]; ok {
		return n
	}
	return 100000
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
