package layout

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no structural parser can handle the document.
// Callers route the document to fallback chunking when they see it.
var ErrUnavailable = errors.New("structural parser unavailable")

// Element is one semantically bounded span from a parsed document layout:
// a paragraph, list item or table cell together with the heading path that
// encloses it and the pages it spans.
type Element struct {
	Text        string
	Headings    []string
	PageNumbers []int
	Caption     string
	Ref         string
}

// Parser converts raw document bytes into an ordered sequence of elements
// with structural metadata. Supports is the availability probe: ingestion
// asks it once per document and picks the structural or fallback path on
// the answer, never on exceptions mid-flight.
type Parser interface {
	Supports(contentType string) bool
	Parse(ctx context.Context, data []byte, contentType string) ([]Element, error)
}
