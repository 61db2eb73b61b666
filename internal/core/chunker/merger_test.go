package chunker

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokafor-dev/askbase/internal/core/layout"
)

func elems(texts ...string) []layout.Element {
	out := make([]layout.Element, len(texts))
	for i, t := range texts {
		out[i] = layout.Element{Text: t}
	}
	return out
}

func TestMerger_EmptyInput(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	out := m.Merge(nil)
	assert.Empty(t, out)
}

func TestMerger_SingleElementPassesThrough(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	out := m.Merge(elems(nWords("w", 10)))

	require.Len(t, out, 1)
	assert.Equal(t, 10, out[0].TokenCount)
	assert.Equal(t, 0, out[0].ChunkIndex)
}

func TestMerger_OversizedElementPassesThroughUnmerged(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	out := m.Merge(elems(nWords("big", 250), nWords("tail", 10)))

	require.Len(t, out, 2)
	assert.Equal(t, 250, out[0].TokenCount, "oversized input is never split")
	assert.Equal(t, 10, out[1].TokenCount)
}

func TestMerger_MergesUndersizedNeighbors(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	out := m.Merge(elems(nWords("a", 20), nWords("b", 20), nWords("c", 20)))

	require.Len(t, out, 1)
	assert.Equal(t, 60, out[0].TokenCount)
}

func TestMerger_TokenCeilingNeverExceeded(t *testing.T) {
	tok := newWordTokenizer()
	m := NewMerger(tok, 100, 50)

	var input []layout.Element
	for i := 0; i < 12; i++ {
		input = append(input, layout.Element{Text: nWords("p"+strconv.Itoa(i)+"x", 30)})
	}
	out := m.Merge(input)

	require.NotEmpty(t, out)
	for _, ch := range out {
		assert.LessOrEqual(t, ch.TokenCount, 100)
		assert.Equal(t, tok.Count(ch.Text), ch.TokenCount)
	}
}

func TestMerger_MinimumTendency(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)

	var input []layout.Element
	for i := 0; i < 10; i++ {
		input = append(input, layout.Element{Text: nWords("q"+strconv.Itoa(i)+"x", 15)})
	}
	out := m.Merge(input)

	// Every chunk except possibly the last reached the minimum, or stopping
	// was forced by the ceiling.
	for i, ch := range out[:len(out)-1] {
		assert.GreaterOrEqual(t, ch.TokenCount, 50, "chunk %d merge-starved", i)
	}
}

func TestMerger_HeadingUnionPreservesOrderAndDedupes(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	input := []layout.Element{
		{Text: nWords("a", 10), Headings: []string{"Chapter 1"}},
		{Text: nWords("b", 10), Headings: []string{"Chapter 1", "Section 1.2"}},
	}
	out := m.Merge(input)

	require.Len(t, out, 1)
	assert.Equal(t, []string{"Chapter 1", "Section 1.2"}, out[0].Headings)
}

func TestMerger_PageNumbersUnioned(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 100, 50)
	input := []layout.Element{
		{Text: nWords("a", 10), PageNumbers: []int{2, 1}},
		{Text: nWords("b", 10), PageNumbers: []int{2, 3}},
	}
	out := m.Merge(input)

	require.Len(t, out, 1)
	assert.Equal(t, []int{1, 2, 3}, out[0].PageNumbers)
}

func TestMerger_CharacterOffsetContinuity(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 40, 20)

	var input []layout.Element
	for i := 0; i < 8; i++ {
		input = append(input, layout.Element{Text: nWords("r"+strconv.Itoa(i)+"x", 12)})
	}
	out := m.Merge(input)

	require.Greater(t, len(out), 1)
	assert.Equal(t, 0, out[0].StartChar)
	for i := 0; i < len(out)-1; i++ {
		assert.Equal(t, out[i].EndChar, out[i+1].StartChar)
	}
}

func TestMerger_Deterministic(t *testing.T) {
	input := []layout.Element{
		{Text: nWords("a", 30), Headings: []string{"H1"}, PageNumbers: []int{1}},
		{Text: nWords("b", 30), Headings: []string{"H1", "H2"}, PageNumbers: []int{1, 2}},
		{Text: nWords("c", 120)},
		{Text: nWords("d", 5)},
	}

	first := NewMerger(newWordTokenizer(), 100, 50).Merge(input)
	second := NewMerger(newWordTokenizer(), 100, 50).Merge(input)
	assert.Equal(t, first, second)
}

func TestMerger_ReindexesDensely(t *testing.T) {
	m := NewMerger(newWordTokenizer(), 40, 20)

	var input []layout.Element
	for i := 0; i < 9; i++ {
		input = append(input, layout.Element{Text: nWords("s"+strconv.Itoa(i)+"x", 15)})
	}
	out := m.Merge(input)

	for i, ch := range out {
		assert.Equal(t, i, ch.ChunkIndex)
	}
}
