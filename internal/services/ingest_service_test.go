package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/core/chunker"
	"github.com/danielokafor-dev/askbase/internal/core/layout"
	"github.com/danielokafor-dev/askbase/internal/core/storage"
	"github.com/danielokafor-dev/askbase/internal/models"
	"github.com/danielokafor-dev/askbase/internal/querycache"
)

// splitTokenizer treats every whitespace-separated word as one token.
type splitTokenizer struct{}

func (splitTokenizer) Encode(text string) []int { return make([]int, len(strings.Fields(text))) }
func (splitTokenizer) Decode(tokens []int) string {
	return strings.Repeat("w ", len(tokens))
}
func (splitTokenizer) Count(text string) int { return len(strings.Fields(text)) }

// passthroughExtractor returns the raw bytes as text.
type passthroughExtractor struct{}

func (passthroughExtractor) ExtractText(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
}

type recordingIndex struct {
	fakeIndex
	upserted []core.VectorItem
	deleted  []map[string]any
}

func (r *recordingIndex) Upsert(_ context.Context, _ string, items []core.VectorItem) error {
	r.upserted = append(r.upserted, items...)
	return nil
}

func (r *recordingIndex) DeleteByFilter(_ context.Context, _ string, filter map[string]any) error {
	r.deleted = append(r.deleted, filter)
	return nil
}

func newIngestService(t *testing.T) (*IngestService, *fakeEmbedder, *recordingIndex) {
	t.Helper()

	backend, err := storage.NewLocalBackend(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tok := splitTokenizer{}
	fallback, err := chunker.NewFallback(tok, 50, 10)
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	index := &recordingIndex{}
	cache := querycache.New(true, time.Hour, time.Hour, time.Hour, zap.NewNop())

	svc := NewIngestService(
		backend,
		index,
		embedder,
		layout.NewMarkdownParser(),
		passthroughExtractor{},
		chunker.NewMerger(tok, 64, 16),
		fallback,
		cache,
		"default",
		zap.NewNop(),
	)
	return svc, embedder, index
}

const sampleMarkdown = `# Chapter 1

Alpha bravo charlie delta echo.

More words in the same chapter here.

## Section 1.1

Foxtrot golf hotel india juliet kilo.
`

func TestIngestService_StructuralPath(t *testing.T) {
	svc, _, index := newIngestService(t)

	res, err := svc.Ingest(context.Background(), "guide.md", "text/markdown", []byte(sampleMarkdown))
	require.NoError(t, err)

	assert.Equal(t, models.ChunkingStructural, res.ChunkingMode)
	assert.False(t, res.Cached)
	assert.Greater(t, res.TotalChunks, 0)
	assert.Len(t, index.upserted, res.TotalChunks)

	first := index.upserted[0]
	assert.Equal(t, "guide.md", first.Metadata["filename"])
	assert.Equal(t, res.DocumentID, first.Metadata["document_id"])
	assert.Contains(t, first.Metadata["headings"], "Chapter 1")
	assert.Equal(t, true, first.Metadata["has_context"])
}

func TestIngestService_FallbackPath(t *testing.T) {
	svc, _, index := newIngestService(t)

	text := strings.Repeat("word ", 120)
	res, err := svc.Ingest(context.Background(), "notes.txt", "text/plain", []byte(text))
	require.NoError(t, err)

	assert.Equal(t, models.ChunkingFallback, res.ChunkingMode)
	assert.Greater(t, res.TotalChunks, 1)

	for _, item := range index.upserted {
		assert.Equal(t, "[]", item.Metadata["headings"])
		assert.Equal(t, false, item.Metadata["has_context"])
	}
}

func TestIngestService_ReuploadShortCircuits(t *testing.T) {
	svc, embedder, _ := newIngestService(t)

	data := []byte(sampleMarkdown)
	first, err := svc.Ingest(context.Background(), "guide.md", "text/markdown", data)
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	second, err := svc.Ingest(context.Background(), "guide.md", "text/markdown", data)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, first.TotalChunks, second.TotalChunks)
	assert.Equal(t, callsAfterFirst, embedder.calls, "cached re-upload must not re-embed")
}

func TestIngestService_IdentityIsContentAddressed(t *testing.T) {
	svc, _, _ := newIngestService(t)

	data := []byte(sampleMarkdown)
	asGuide, err := svc.Ingest(context.Background(), "guide.md", "text/markdown", data)
	require.NoError(t, err)
	asManual, err := svc.Ingest(context.Background(), "manual.md", "text/markdown", data)
	require.NoError(t, err)

	assert.Equal(t, asGuide.DocumentID, asManual.DocumentID,
		"identity depends on bytes, not filename")
	assert.Equal(t, DocumentID(data), asGuide.DocumentID)
}

func TestIngestService_EmptyDocument(t *testing.T) {
	svc, _, _ := newIngestService(t)

	_, err := svc.Ingest(context.Background(), "empty.md", "text/markdown", nil)
	assert.Error(t, err)
}

func TestIngestService_DeleteRemovesEverywhere(t *testing.T) {
	svc, _, index := newIngestService(t)

	res, err := svc.Ingest(context.Background(), "guide.md", "text/markdown", []byte(sampleMarkdown))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), res.DocumentID))

	require.Len(t, index.deleted, 1)
	assert.Equal(t, res.DocumentID, index.deleted[0]["document_id"])

	docs, err := svc.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestService_ListDocuments(t *testing.T) {
	svc, _, _ := newIngestService(t)

	_, err := svc.Ingest(context.Background(), "a.md", "text/markdown", []byte("# A\n\nAlpha words here.\n"))
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), "b.txt", "text/plain", []byte("bravo words here"))
	require.NoError(t, err)

	docs, err := svc.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	names := []string{docs[0].Filename, docs[1].Filename}
	assert.ElementsMatch(t, []string{"a.md", "b.txt"}, names)
}
