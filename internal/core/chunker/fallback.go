package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/danielokafor-dev/askbase/internal/core/token"
	"github.com/danielokafor-dev/askbase/internal/models"
)

// Fallback is the fixed-window token chunker used when no structural parse
// is available. It encodes the whole text once and slides a window of
// ChunkSize tokens advancing by ChunkSize-Overlap per step, so consecutive
// chunks share exactly Overlap tokens.
//
// Character offsets on this path are derived from decoded window lengths,
// not from an exact mapping back into the source text; callers must not use
// them to reconstruct the original bytes. Structural metadata is always
// empty, which downstream consumers read as "no heading context available".
type Fallback struct {
	tok       token.Tokenizer
	chunkSize int
	overlap   int
}

// NewFallback validates the window configuration: an overlap equal to or
// larger than the chunk size would stall the window forever.
func NewFallback(tok token.Tokenizer, chunkSize, overlap int) (*Fallback, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, chunk size %d)", overlap, chunkSize)
	}
	return &Fallback{tok: tok, chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text into overlapping fixed-size windows. The last window is
// truncated to the remaining tokens; nothing is padded.
func (f *Fallback) Chunk(text string) []models.Chunk {
	tokens := f.tok.Encode(text)
	if len(tokens) == 0 {
		return []models.Chunk{}
	}

	step := f.chunkSize - f.overlap
	var chunks []models.Chunk
	startChar := 0

	for start := 0; start < len(tokens); start += step {
		end := start + f.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		chunkText := f.tok.Decode(window)

		if start > 0 {
			// Advance by the decoded length of the non-overlapping stride.
			advance := f.tok.Decode(tokens[start-step : start])
			startChar += utf8.RuneCountInString(advance)
		}

		chunks = append(chunks, models.Chunk{
			Text:        chunkText,
			ChunkIndex:  len(chunks),
			TokenCount:  len(window),
			StartChar:   startChar,
			EndChar:     startChar + utf8.RuneCountInString(chunkText),
			Headings:    []string{},
			PageNumbers: []int{},
			DocItems:    []string{},
			Captions:    []string{},
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks
}
