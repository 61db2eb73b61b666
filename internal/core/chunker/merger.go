package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/danielokafor-dev/askbase/internal/core/layout"
	"github.com/danielokafor-dev/askbase/internal/core/token"
	"github.com/danielokafor-dev/askbase/internal/models"
)

// separator joins the texts of merged elements.
const separator = "\n\n"

// Merger combines undersized structural elements into token-bounded chunks.
//
// The pass is strictly greedy and single-forward: an accumulation keeps
// absorbing the next element while its running token count is below
// MinTokens and the combination stays within MaxTokens; otherwise it is
// closed out and the element starts a new one. The merger never splits an
// element, so a single oversized input passes through unmerged even above
// the ceiling.
type Merger struct {
	tok       token.Tokenizer
	maxTokens int
	minTokens int
}

func NewMerger(tok token.Tokenizer, maxTokens, minTokens int) *Merger {
	return &Merger{tok: tok, maxTokens: maxTokens, minTokens: minTokens}
}

// accum is the open accumulation during the merge pass.
type accum struct {
	texts    []string
	tokens   int
	headings []string
	seen     map[string]bool
	pages    map[int]bool
	items    []string
	captions []string
}

func newAccum(el layout.Element, tokens int) *accum {
	a := &accum{
		tokens: tokens,
		seen:   make(map[string]bool),
		pages:  make(map[int]bool),
	}
	a.absorb(el)
	return a
}

// absorb appends the element's text and reconciles its metadata: headings
// keep first-seen order without duplicates, pages form a set.
func (a *accum) absorb(el layout.Element) {
	a.texts = append(a.texts, el.Text)
	for _, h := range el.Headings {
		if !a.seen[h] {
			a.seen[h] = true
			a.headings = append(a.headings, h)
		}
	}
	for _, p := range el.PageNumbers {
		a.pages[p] = true
	}
	if el.Ref != "" {
		a.items = append(a.items, el.Ref)
	}
	if el.Caption != "" {
		a.captions = append(a.captions, el.Caption)
	}
}

// Merge produces the final chunk sequence for an ordered element list.
// Output chunks are re-indexed 0..N-1 and character offsets are recomputed
// by walking the outputs, so output[i].EndChar == output[i+1].StartChar.
func (m *Merger) Merge(elements []layout.Element) []models.Chunk {
	merged := make([]*accum, 0, len(elements))
	var current *accum

	for _, el := range elements {
		elTokens := m.tok.Count(el.Text)

		if current == nil {
			current = newAccum(el, elTokens)
			continue
		}

		// Counting the separator with the element keeps the running sum an
		// upper bound on the joined text's real token count.
		withSep := m.tok.Count(separator + el.Text)
		if current.tokens < m.minTokens && current.tokens+withSep <= m.maxTokens {
			current.absorb(el)
			current.tokens += withSep
			continue
		}

		merged = append(merged, current)
		current = newAccum(el, elTokens)
	}
	if current != nil {
		merged = append(merged, current)
	}

	out := make([]models.Chunk, 0, len(merged))
	charPos := 0
	for idx, a := range merged {
		text := strings.Join(a.texts, separator)
		start := charPos
		end := start + utf8.RuneCountInString(text)
		charPos = end

		out = append(out, models.Chunk{
			Text:        text,
			ChunkIndex:  idx,
			TokenCount:  m.tok.Count(text),
			StartChar:   start,
			EndChar:     end,
			Headings:    emptyIfNil(a.headings),
			PageNumbers: sortedPages(a.pages),
			DocItems:    emptyIfNil(a.items),
			Captions:    emptyIfNil(a.captions),
		})
	}
	return out
}

func sortedPages(set map[int]bool) []int {
	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
