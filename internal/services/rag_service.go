package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/models"
	"github.com/danielokafor-dev/askbase/internal/querycache"
)

const (
	defaultTopK = 3

	ragSystemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
		"If the context doesn't contain enough information to answer the question, " +
		"say so explicitly. Always base your answers on the provided context."

	// noAnswer is returned verbatim when retrieval finds nothing. Responses
	// built from it are never cached: the next upload may change the outcome.
	noAnswer = "I don't have enough information to answer that question. Please upload relevant documents first."
)

// RAGService answers questions from ingested documents: embed the question,
// retrieve the nearest chunks, generate an answer grounded on them.
type RAGService struct {
	embedder  core.EmbeddingProvider
	index     core.VectorIndex
	llm       core.LLMProvider
	cache     *querycache.Cache
	namespace string
	log       *zap.Logger
}

func NewRAGService(embedder core.EmbeddingProvider, index core.VectorIndex, llm core.LLMProvider, cache *querycache.Cache, namespace string, log *zap.Logger) *RAGService {
	return &RAGService{
		embedder:  embedder,
		index:     index,
		llm:       llm,
		cache:     cache,
		namespace: namespace,
		log:       log,
	}
}

// Answer runs the full pipeline for one question. Answers are cached keyed
// on (question, topK); a hit skips both the embedding and generation calls.
func (s *RAGService) Answer(ctx context.Context, question string, topK int) (*models.RAGResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	cacheKey := querycache.RAGKey(question, topK)
	if v, ok := s.cache.Get(querycache.TypeRAG, cacheKey); ok {
		if cached, ok := v.(models.RAGResponse); ok {
			cached.CacheHit = true
			s.log.Info("rag answer served from cache", zap.String("question", question))
			return &cached, nil
		}
	}

	matches, usage, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return &models.RAGResponse{
			Question:   question,
			Answer:     noAnswer,
			ChunksUsed: 0,
			Model:      s.llm.Model(),
			Usage:      usage,
			Sources:    []models.Source{},
		}, nil
	}

	prompt := buildPrompt(question, buildContext(matches))
	answer, genUsage, err := s.llm.Generate(ctx, ragSystemPrompt, prompt, core.GenOptions{
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	usage.Add(genUsage)

	resp := models.RAGResponse{
		Question:   question,
		Answer:     answer,
		ChunksUsed: len(matches),
		Model:      s.llm.Model(),
		Usage:      usage,
		Sources:    formatSources(matches),
	}
	s.cache.Set(querycache.TypeRAG, cacheKey, resp)

	s.log.Info("rag answer generated",
		zap.String("question", question),
		zap.Int("chunks_used", len(matches)),
		zap.Int("total_tokens", usage.TotalTokens))
	return &resp, nil
}

// RetrievedChunk is one search result returned without generation.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// SimilarChunksResult lists retrieval output for inspection.
type SimilarChunksResult struct {
	Question   string           `json:"question"`
	Chunks     []RetrievedChunk `json:"chunks"`
	TotalFound int              `json:"total_found"`
}

// SimilarChunks retrieves without generating, for debugging what a question
// would read.
func (s *RAGService) SimilarChunks(ctx context.Context, question string, topK int) (*SimilarChunksResult, error) {
	if topK <= 0 {
		topK = 5
	}

	matches, _, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	chunks := make([]RetrievedChunk, len(matches))
	for i, m := range matches {
		chunks[i] = RetrievedChunk{
			ID:    m.ID,
			Score: m.Score,
			Text:  metaString(m.Metadata, "text"),
			Metadata: map[string]any{
				"filename":    metaString(m.Metadata, "filename"),
				"chunk_index": metaInt(m.Metadata, "chunk_index"),
				"token_count": metaInt(m.Metadata, "token_count"),
			},
		}
	}
	return &SimilarChunksResult{
		Question:   question,
		Chunks:     chunks,
		TotalFound: len(chunks),
	}, nil
}

func (s *RAGService) retrieve(ctx context.Context, question string, topK int) ([]core.VectorMatch, models.Usage, error) {
	vectors, usage, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, models.Usage{}, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}

	matches, err := s.index.Query(ctx, s.namespace, vectors[0], topK, nil)
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("vector search: %w", err)
	}
	return matches, usage, nil
}

// buildContext renders retrieved chunks for the prompt, labelling each with
// its source and, when present, the heading path it sits under.
func buildContext(matches []core.VectorMatch) string {
	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		filename := metaString(m.Metadata, "filename")
		if filename == "" {
			filename = "Unknown"
		}
		text := metaString(m.Metadata, "text")

		var b strings.Builder
		fmt.Fprintf(&b, "[Source %d: %s (relevance: %.3f)]\n", i+1, filename, m.Score)
		if headings := metaHeadings(m.Metadata); len(headings) > 0 {
			fmt.Fprintf(&b, "[Section: %s]\n", strings.Join(headings, " > "))
		}
		b.WriteString(text)
		b.WriteString("\n")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

func buildPrompt(question, context string) string {
	return fmt.Sprintf(`You are a helpful assistant. Answer the question based on the provided context.

If the context doesn't contain enough information to answer the question, say "I don't have enough information to answer that based on the provided documents."

Context:
%s

Question: %s

Answer:`, context, question)
}

func formatSources(matches []core.VectorMatch) []models.Source {
	sources := make([]models.Source, len(matches))
	for i, m := range matches {
		filename := metaString(m.Metadata, "filename")
		if filename == "" {
			filename = "Unknown"
		}
		sources[i] = models.Source{
			Filename:       filename,
			ChunkIndex:     metaInt(m.Metadata, "chunk_index"),
			RelevanceScore: m.Score,
			Preview:        truncateRunes(metaString(m.Metadata, "text"), 200) + "...",
		}
	}
	return sources
}

// metaHeadings decodes the headings JSON string stored in vector metadata.
// Anything unparseable reads as "no heading context".
func metaHeadings(meta map[string]any) []string {
	raw := metaString(meta, "headings")
	if raw == "" {
		return nil
	}
	var headings []string
	if err := json.Unmarshal([]byte(raw), &headings); err != nil {
		return nil
	}
	return headings
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// metaInt tolerates the float64 that JSON decoding produces for numbers.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
