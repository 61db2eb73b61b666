package layout

import (
	"context"
	"strings"
)

// MarkdownParser extracts structural elements from Markdown: every run of
// non-blank lines becomes one element carrying the ATX heading path that
// encloses it. Markdown has no page boundaries, so PageNumbers stays empty.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Supports(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "text/markdown", "text/x-markdown":
		return true
	}
	return false
}

// Parse walks the document line by line, maintaining a heading stack: a
// level-n heading truncates the stack to n-1 entries and pushes itself.
func (p *MarkdownParser) Parse(ctx context.Context, data []byte, contentType string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		elements []Element
		stack    []string
		block    []string
	)

	flush := func() {
		if len(block) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if text == "" {
			return
		}
		headings := make([]string, len(stack))
		copy(headings, stack)
		elements = append(elements, Element{Text: text, Headings: headings})
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)

		if level, title := headingLine(trimmed); level > 0 {
			flush()
			if level-1 < len(stack) {
				stack = stack[:level-1]
			}
			stack = append(stack, title)
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}
		block = append(block, trimmed)
	}
	flush()

	return elements, nil
}

// headingLine returns the ATX heading level (1..6) and title, or 0 when the
// line is not a heading.
func headingLine(line string) (int, string) {
	if !strings.HasPrefix(line, "#") {
		return 0, ""
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, ""
	}
	title := strings.TrimSpace(strings.TrimRight(line[level:], "#"))
	if title == "" {
		return 0, ""
	}
	return level, title
}

// normalizeContentType strips parameters such as "; charset=utf-8".
func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

var _ Parser = (*MarkdownParser)(nil)
