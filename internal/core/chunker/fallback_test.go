package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_ConfigRejectsOverlapAtOrAboveSize(t *testing.T) {
	tok := newWordTokenizer()

	_, err := NewFallback(tok, 100, 100)
	assert.Error(t, err, "overlap == chunk size stalls the window")

	_, err = NewFallback(tok, 100, 150)
	assert.Error(t, err)

	_, err = NewFallback(tok, 100, -1)
	assert.Error(t, err)

	_, err = NewFallback(tok, 0, 0)
	assert.Error(t, err)

	_, err = NewFallback(tok, 100, 0)
	assert.NoError(t, err, "zero overlap is valid")
}

func TestFallback_EmptyText(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 100, 20)
	require.NoError(t, err)

	assert.Empty(t, f.Chunk(""))
	assert.Empty(t, f.Chunk("   \n\t  "))
}

func TestFallback_ShortTextIsOneChunk(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 100, 20)
	require.NoError(t, err)

	chunks := f.Chunk(nWords("w", 40))
	require.Len(t, chunks, 1)
	assert.Equal(t, 40, chunks[0].TokenCount)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestFallback_ConsecutiveChunksShareExactOverlap(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 100, 20)
	require.NoError(t, err)

	text := nWords("w", 250)
	chunks := f.Chunk(text)
	require.Len(t, chunks, 3, "250 tokens with step 80 -> windows at 0, 80, 160")

	for i := 1; i < len(chunks); i++ {
		prev := tok.Encode(chunks[i-1].Text)
		cur := tok.Encode(chunks[i].Text)
		assert.Equal(t, prev[len(prev)-20:], cur[:20],
			"chunk %d must begin with the last 20 tokens of chunk %d", i, i-1)
	}
}

func TestFallback_WindowSizesAndTail(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 100, 20)
	require.NoError(t, err)

	chunks := f.Chunk(nWords("w", 250))
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, chunks[0].TokenCount)
	assert.Equal(t, 100, chunks[1].TokenCount)
	assert.Equal(t, 90, chunks[2].TokenCount, "last window holds the remaining tokens")
}

func TestFallback_StructuralMetadataIsEmpty(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 50, 10)
	require.NoError(t, err)

	for _, c := range f.Chunk(nWords("w", 120)) {
		assert.Empty(t, c.Headings)
		assert.Empty(t, c.PageNumbers)
		assert.Empty(t, c.DocItems)
		assert.Empty(t, c.Captions)
		assert.NotNil(t, c.Headings, "empty, not nil, so JSON encodes []")
	}
}

func TestFallback_ReindexesDensely(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 50, 10)
	require.NoError(t, err)

	chunks := f.Chunk(nWords("w", 200))
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestFallback_OffsetsAdvanceMonotonically(t *testing.T) {
	tok := newWordTokenizer()
	f, err := NewFallback(tok, 50, 10)
	require.NoError(t, err)

	chunks := f.Chunk(nWords("w", 200))
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 0, chunks[0].StartChar)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartChar, chunks[i-1].StartChar)
		assert.Greater(t, chunks[i].EndChar, chunks[i].StartChar)
	}
}
