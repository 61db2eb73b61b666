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
	"github.com/danielokafor-dev/askbase/internal/models"
	"github.com/danielokafor-dev/askbase/internal/querycache"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, models.Usage, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, models.Usage{EmbeddingTokens: 7, TotalTokens: 7}, nil
}

func (f *fakeEmbedder) Model() string  { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeIndex struct {
	matches []core.VectorMatch
	queries int
}

func (f *fakeIndex) Upsert(context.Context, string, []core.VectorItem) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, topK int, _ map[string]any) ([]core.VectorMatch, error) {
	f.queries++
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) DeleteByFilter(context.Context, string, map[string]any) error { return nil }

func (f *fakeIndex) Stats(context.Context) (core.IndexStats, error) {
	return core.IndexStats{}, nil
}

type fakeLLM struct {
	answer     string
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeLLM) Generate(_ context.Context, systemPrompt, userPrompt string, _ core.GenOptions) (string, models.Usage, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.answer, models.Usage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70}, nil
}

func (f *fakeLLM) Model() string { return "fake-llm" }

func matchWith(filename, text string, index int, score float64, headings string) core.VectorMatch {
	return core.VectorMatch{
		ID:    filename + "_0",
		Score: score,
		Metadata: map[string]any{
			"filename":    filename,
			"chunk_index": float64(index),
			"token_count": float64(42),
			"text":        text,
			"headings":    headings,
		},
	}
}

func newRAGService(index *fakeIndex, llm *fakeLLM, cacheEnabled bool) (*RAGService, *fakeEmbedder) {
	embedder := &fakeEmbedder{}
	cache := querycache.New(cacheEnabled, time.Hour, time.Hour, time.Hour, zap.NewNop())
	return NewRAGService(embedder, index, llm, cache, "default", zap.NewNop()), embedder
}

func TestRAGService_EmptyQuestion(t *testing.T) {
	svc, _ := newRAGService(&fakeIndex{}, &fakeLLM{}, false)

	_, err := svc.Answer(context.Background(), "   ", 3)
	assert.Error(t, err)
}

func TestRAGService_ZeroMatchesReturnsCannedAnswer(t *testing.T) {
	llm := &fakeLLM{answer: "should not be called"}
	svc, _ := newRAGService(&fakeIndex{}, llm, true)

	res, err := svc.Answer(context.Background(), "anything in there?", 3)
	require.NoError(t, err)

	assert.Equal(t, noAnswer, res.Answer)
	assert.Equal(t, 0, res.ChunksUsed)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 0, llm.calls, "no generation without context")

	// Zero-match answers must not stick: the next upload may change them.
	res2, err := svc.Answer(context.Background(), "anything in there?", 3)
	require.NoError(t, err)
	assert.False(t, res2.CacheHit)
}

func TestRAGService_AnswerCarriesSourcesAndUsage(t *testing.T) {
	index := &fakeIndex{matches: []core.VectorMatch{
		matchWith("report.pdf", "Quarterly revenue grew 12%.", 4, 0.91, `["Financials","Q3"]`),
		matchWith("notes.md", "Margins were flat.", 1, 0.72, "[]"),
	}}
	llm := &fakeLLM{answer: "Revenue grew 12% in Q3."}
	svc, _ := newRAGService(index, llm, false)

	res, err := svc.Answer(context.Background(), "How did revenue do?", 3)
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12% in Q3.", res.Answer)
	assert.Equal(t, 2, res.ChunksUsed)
	assert.Equal(t, "fake-llm", res.Model)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "report.pdf", res.Sources[0].Filename)
	assert.Equal(t, 4, res.Sources[0].ChunkIndex)
	assert.InDelta(t, 0.91, res.Sources[0].RelevanceScore, 1e-9)
	assert.True(t, strings.HasSuffix(res.Sources[0].Preview, "..."))

	// Embedding + generation usage folded together.
	assert.Equal(t, 7, res.Usage.EmbeddingTokens)
	assert.Equal(t, 50, res.Usage.PromptTokens)
	assert.Equal(t, 77, res.Usage.TotalTokens)
}

func TestRAGService_PromptFormat(t *testing.T) {
	index := &fakeIndex{matches: []core.VectorMatch{
		matchWith("report.pdf", "Revenue text.", 0, 0.875, `["Financials","Q3"]`),
		matchWith("notes.md", "Margin text.", 0, 0.5, "[]"),
	}}
	llm := &fakeLLM{answer: "ok"}
	svc, _ := newRAGService(index, llm, false)

	_, err := svc.Answer(context.Background(), "How did revenue do?", 3)
	require.NoError(t, err)

	assert.Contains(t, llm.lastUser, "[Source 1: report.pdf (relevance: 0.875)]")
	assert.Contains(t, llm.lastUser, "[Section: Financials > Q3]")
	assert.Contains(t, llm.lastUser, "[Source 2: notes.md (relevance: 0.500)]")
	assert.NotContains(t, strings.Split(llm.lastUser, "[Source 2")[1], "[Section:",
		"chunks without headings get no section line")
	assert.Contains(t, llm.lastUser, "Question: How did revenue do?")
	assert.Contains(t, llm.lastSystem, "based on provided context")
}

func TestRAGService_CacheHitSkipsProviders(t *testing.T) {
	index := &fakeIndex{matches: []core.VectorMatch{
		matchWith("doc.md", "Some text.", 0, 0.9, "[]"),
	}}
	llm := &fakeLLM{answer: "cached answer"}
	svc, embedder := newRAGService(index, llm, true)

	first, err := svc.Answer(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Answer(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 1, llm.calls)

	// Same question at different retrieval depth is a different cache entry.
	third, err := svc.Answer(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestRAGService_SimilarChunks(t *testing.T) {
	index := &fakeIndex{matches: []core.VectorMatch{
		matchWith("doc.md", "Alpha.", 0, 0.9, "[]"),
		matchWith("doc.md", "Beta.", 1, 0.8, "[]"),
	}}
	svc, _ := newRAGService(index, &fakeLLM{}, false)

	res, err := svc.SimilarChunks(context.Background(), "q", 5)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalFound)
	assert.Equal(t, "Alpha.", res.Chunks[0].Text)
	assert.Equal(t, "doc.md", res.Chunks[0].Metadata["filename"])
	assert.Equal(t, 1, res.Chunks[1].Metadata["chunk_index"])
}
