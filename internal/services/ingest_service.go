package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/core/chunker"
	"github.com/danielokafor-dev/askbase/internal/core/layout"
	"github.com/danielokafor-dev/askbase/internal/core/storage"
	"github.com/danielokafor-dev/askbase/internal/models"
	"github.com/danielokafor-dev/askbase/internal/querycache"
)

const embedBatchSize = 100

// IngestService runs the upload pipeline: identify, chunk, embed, persist,
// index. Document identity is the SHA-256 of the raw bytes, so re-uploading
// identical content short-circuits to the cached artifacts.
type IngestService struct {
	storage   storage.Backend
	index     core.VectorIndex
	embedder  core.EmbeddingProvider
	parser    layout.Parser
	extractor layout.TextExtractor
	merger    *chunker.Merger
	fallback  *chunker.Fallback
	cache     *querycache.Cache
	namespace string
	log       *zap.Logger
}

func NewIngestService(
	backend storage.Backend,
	index core.VectorIndex,
	embedder core.EmbeddingProvider,
	parser layout.Parser,
	extractor layout.TextExtractor,
	merger *chunker.Merger,
	fallback *chunker.Fallback,
	cache *querycache.Cache,
	namespace string,
	log *zap.Logger,
) *IngestService {
	return &IngestService{
		storage:   backend,
		index:     index,
		embedder:  embedder,
		parser:    parser,
		extractor: extractor,
		merger:    merger,
		fallback:  fallback,
		cache:     cache,
		namespace: namespace,
		log:       log,
	}
}

// IngestResult summarizes one processed upload.
type IngestResult struct {
	DocumentID   string       `json:"document_id"`
	Filename     string       `json:"filename"`
	TotalChunks  int          `json:"total_chunks"`
	TotalTokens  int          `json:"total_tokens"`
	ChunkingMode string       `json:"chunking_mode"`
	Cached       bool         `json:"cached"`
	Usage        models.Usage `json:"usage"`
}

// Ingest processes one uploaded document end to end. On an artifact-cache
// hit the stored chunks and embeddings are re-upserted into the index
// (idempotent) without calling the embedding API again.
func (s *IngestService) Ingest(ctx context.Context, filename, contentType string, data []byte) (*IngestResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document %q", filename)
	}

	docID := DocumentID(data)

	exists, err := s.storage.Exists(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("check cache for %q: %w", filename, err)
	}
	if exists {
		return s.ingestFromCache(ctx, docID, filename)
	}

	chunks, mode, err := s.chunk(ctx, filename, contentType, data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %q produced no chunks", filename)
	}

	texts := make([]string, len(chunks))
	totalTokens := 0
	for i, c := range chunks {
		texts[i] = c.Text
		totalTokens += c.TokenCount
	}

	embeddings, usage, err := s.embedBatched(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", filename, err)
	}

	meta := &models.DocumentMeta{
		DocumentID:   docID,
		Filename:     filename,
		Extension:    extension(filename),
		TotalChunks:  len(chunks),
		TotalTokens:  totalTokens,
		ChunkingMode: mode,
		CachedAt:     time.Now().UTC(),
	}

	// Persist artifacts and index vectors concurrently; either failure
	// aborts the whole ingest.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.persistArtifacts(gctx, docID, meta, data, chunks, embeddings)
	})
	g.Go(func() error {
		return s.upsertVectors(gctx, docID, filename, chunks, embeddings)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest %q: %w", filename, err)
	}

	s.log.Info("document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.String("mode", mode),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", totalTokens))

	return &IngestResult{
		DocumentID:   docID,
		Filename:     filename,
		TotalChunks:  len(chunks),
		TotalTokens:  totalTokens,
		ChunkingMode: mode,
		Usage:        usage,
	}, nil
}

func (s *IngestService) ingestFromCache(ctx context.Context, docID, filename string) (*IngestResult, error) {
	meta, err := s.storage.LoadMetadata(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load cached metadata: %w", err)
	}
	chunks, err := s.storage.LoadChunks(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load cached chunks: %w", err)
	}
	embeddings, err := s.storage.LoadEmbeddings(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load cached embeddings: %w", err)
	}

	if err := s.upsertVectors(ctx, docID, meta.Filename, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("re-index cached document: %w", err)
	}

	s.log.Info("document served from artifact cache",
		zap.String("document_id", docID),
		zap.String("filename", filename))

	return &IngestResult{
		DocumentID:   docID,
		Filename:     meta.Filename,
		TotalChunks:  meta.TotalChunks,
		TotalTokens:  meta.TotalTokens,
		ChunkingMode: meta.ChunkingMode,
		Cached:       true,
	}, nil
}

// chunk picks the chunking strategy: structural merge when the layout parser
// supports the content type, fixed-window fallback over extracted plain text
// otherwise.
func (s *IngestService) chunk(ctx context.Context, filename, contentType string, data []byte) ([]models.Chunk, string, error) {
	if s.parser.Supports(contentType) {
		elements, err := s.parser.Parse(ctx, data, contentType)
		switch {
		case err == nil:
			return s.merger.Merge(elements), models.ChunkingStructural, nil
		case errors.Is(err, layout.ErrUnavailable):
			s.log.Warn("structural parse unavailable, falling back",
				zap.String("filename", filename))
		default:
			return nil, "", fmt.Errorf("parse %q: %w", filename, err)
		}
	}

	text, err := s.extractor.ExtractText(ctx, data, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("extract text from %q: %w", filename, err)
	}
	return s.fallback.Chunk(text), models.ChunkingFallback, nil
}

func (s *IngestService) embedBatched(ctx context.Context, texts []string) ([][]float32, models.Usage, error) {
	embeddings := make([][]float32, 0, len(texts))
	var usage models.Usage

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, u, err := s.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, models.Usage{}, err
		}
		embeddings = append(embeddings, vecs...)
		usage.Add(u)
	}
	return embeddings, usage, nil
}

func (s *IngestService) persistArtifacts(ctx context.Context, docID string, meta *models.DocumentMeta, data []byte, chunks []models.Chunk, embeddings [][]float32) error {
	if err := s.storage.SaveDocument(ctx, docID, meta.Extension, data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := s.storage.SaveChunks(ctx, docID, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	if err := s.storage.SaveEmbeddings(ctx, docID, embeddings); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	if err := s.storage.SaveMetadata(ctx, docID, meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func (s *IngestService) upsertVectors(ctx context.Context, docID, filename string, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("mismatch: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	items := make([]core.VectorItem, len(chunks))
	for i := range chunks {
		items[i] = core.VectorItem{
			ID:       fmt.Sprintf("%s_%d", filename, chunks[i].ChunkIndex),
			Values:   embeddings[i],
			Metadata: vectorMetadata(docID, filename, &chunks[i]),
		}
	}
	return s.index.Upsert(ctx, s.namespace, items)
}

// vectorMetadata builds the per-vector payload. Headings and page numbers go
// in as JSON strings; the text is truncated so metadata rows stay small.
func vectorMetadata(docID, filename string, c *models.Chunk) map[string]any {
	headings, _ := json.Marshal(c.Headings)
	pages, _ := json.Marshal(c.PageNumbers)
	return map[string]any{
		"document_id":  docID,
		"filename":     filename,
		"chunk_index":  c.ChunkIndex,
		"token_count":  c.TokenCount,
		"text":         truncateRunes(c.Text, 1000),
		"start_char":   c.StartChar,
		"end_char":     c.EndChar,
		"headings":     string(headings),
		"page_numbers": string(pages),
		"has_context":  c.HasContext(),
	}
}

// Delete removes a document everywhere: its vectors, its stored artifacts
// and any cached answers that might cite it.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	meta, err := s.storage.LoadMetadata(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load metadata for delete: %w", err)
	}

	if err := s.index.DeleteByFilter(ctx, s.namespace, map[string]any{
		"document_id": documentID,
	}); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.storage.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}

	// Cached answers may cite the deleted document.
	s.cache.Flush(querycache.TypeRAG)

	s.log.Info("document deleted",
		zap.String("document_id", documentID),
		zap.String("filename", meta.Filename))
	return nil
}

// ListDocuments returns the metadata of every cached document.
func (s *IngestService) ListDocuments(ctx context.Context) ([]models.DocumentMeta, error) {
	ids, err := s.storage.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	metas := make([]models.DocumentMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := s.storage.LoadMetadata(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // partially written entry
			}
			return nil, fmt.Errorf("load metadata for %q: %w", id, err)
		}
		metas = append(metas, *meta)
	}
	return metas, nil
}

// SystemStats aggregates storage, index and cache statistics.
type SystemStats struct {
	Storage storage.Stats           `json:"storage"`
	Index   core.IndexStats         `json:"index"`
	Cache   map[querycache.Type]int `json:"cache_items"`
}

func (s *IngestService) Stats(ctx context.Context) (*SystemStats, error) {
	storageStats, err := s.storage.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage stats: %w", err)
	}
	indexStats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	return &SystemStats{
		Storage: *storageStats,
		Index:   indexStats,
		Cache:   s.cache.ItemCount(),
	}, nil
}

// DocumentID derives the content-addressed identity of a document.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
