package layout

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// TextExtractor produces the plain text of a document when no structural
// parse is available. It feeds the fallback chunker.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// DocconvExtractor implements TextExtractor with sajari/docconv, which
// handles PDF, DOCX, HTML and most office formats.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ct := normalizeContentType(contentType)
	switch ct {
	case "text/plain", "text/markdown", "text/x-markdown", "text/csv", "application/json", "":
		// Already text; docconv would reject or mangle these.
		return string(data), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), ct, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv extract (%s): %w", ct, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return "", fmt.Errorf("docconv extract (%s): empty text", ct)
	}
	return res.Body, nil
}

var _ TextExtractor = (*DocconvExtractor)(nil)
