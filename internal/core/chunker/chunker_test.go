package chunker

import (
	"strconv"
	"strings"
)

// wordTokenizer is a deterministic test tokenizer: one whitespace-separated
// word is one token. Encode/Decode round-trip through a shared vocabulary.
type wordTokenizer struct {
	vocab map[string]int
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{vocab: make(map[string]int)}
}

func (t *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, 0, len(fields))
	for _, w := range fields {
		id, ok := t.vocab[w]
		if !ok {
			id = len(t.words)
			t.vocab[w] = id
			t.words = append(t.words, w)
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (t *wordTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, id := range tokens {
		words[i] = t.words[id]
	}
	return strings.Join(words, " ")
}

func (t *wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// nWords builds a text of n distinct words with the given prefix.
func nWords(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = prefix + strconv.Itoa(i)
	}
	return strings.Join(words, " ")
}
