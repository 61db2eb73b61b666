package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding matches the encoding used for the embedding models, so
// token budgets line up with what the embedder actually sees.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts, encodes and decodes text with a byte-pair encoding.
// Encode and Decode are inverses for the same encoding version.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// Tiktoken wraps a tiktoken BPE encoder.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a tokenizer for the named encoding. An empty name
// selects DefaultEncoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

var _ Tokenizer = (*Tiktoken)(nil)
