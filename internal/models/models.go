package models

import (
	"time"
)

// Chunk is the retrieval unit: a bounded span of document text plus the
// structural metadata recovered from layout parsing. Chunks are created once
// at ingestion time and never mutated afterwards; re-ingesting a document
// replaces the whole list.
type Chunk struct {
	Text        string   `json:"text"`
	ChunkIndex  int      `json:"chunk_index"`
	TokenCount  int      `json:"token_count"`
	StartChar   int      `json:"start_char"`
	EndChar     int      `json:"end_char"`
	Headings    []string `json:"headings"`
	PageNumbers []int    `json:"page_numbers"`
	DocItems    []string `json:"doc_items"`
	Captions    []string `json:"captions"`
}

// HasContext reports whether the chunk carries structural heading context.
// Fallback-chunked documents always answer false.
func (c *Chunk) HasContext() bool {
	return len(c.Headings) > 0
}

// DocumentMeta describes one ingested document. It is the metadata artifact
// persisted alongside chunks and embeddings, keyed by the document identity
// (SHA-256 of the file bytes).
type DocumentMeta struct {
	DocumentID   string    `json:"document_id"`
	Filename     string    `json:"filename"`
	Extension    string    `json:"extension"`
	TotalChunks  int       `json:"total_chunks"`
	TotalTokens  int       `json:"total_tokens"`
	ChunkingMode string    `json:"chunking_mode"` // "structural" or "fallback"
	CachedAt     time.Time `json:"cached_at"`
}

// Chunking modes recorded in DocumentMeta.
const (
	ChunkingStructural = "structural"
	ChunkingFallback   = "fallback"
)

// Pending-query statuses. A query is created as StatusPendingApproval and
// resolves to exactly one of the terminal statuses; there is no way back.
const (
	StatusPendingApproval = "pending_approval"
	StatusRejected        = "rejected"
	StatusExecuted        = "executed"
	StatusError           = "error"
)

// PendingQuery is a ledger entry for generated SQL awaiting a human
// accept/reject decision. CacheHit records whether the SQL came from the
// generation cache; it has no bearing on the approval workflow.
type PendingQuery struct {
	QueryID     string    `json:"query_id"`
	Question    string    `json:"question"`
	SQL         string    `json:"sql"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`
	CacheHit    bool      `json:"cache_hit"`
}

// Usage is the token accounting for one answered request.
type Usage struct {
	EmbeddingTokens  int `json:"embedding_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.EmbeddingTokens += other.EmbeddingTokens
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Source is a citation attached to a RAG answer.
type Source struct {
	Filename       string  `json:"filename"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Preview        string  `json:"preview"`
}

// RAGResponse is the answer payload for one question.
type RAGResponse struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	ChunksUsed int      `json:"chunks_used"`
	Model      string   `json:"model"`
	Usage      Usage    `json:"usage"`
	Sources    []Source `json:"sources"`
	CacheHit   bool     `json:"cache_hit"`
}

// SQLGenerateResult is returned when SQL has been generated and parked for
// approval.
type SQLGenerateResult struct {
	QueryID     string `json:"query_id"`
	Question    string `json:"question"`
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Status      string `json:"status"`
	CacheHit    bool   `json:"cache_hit"`
}

// SQLResolveResult is returned for an approve/reject decision. Results is
// nil unless the query executed (or was served from the result cache).
type SQLResolveResult struct {
	QueryID     string           `json:"query_id"`
	Question    string           `json:"question,omitempty"`
	SQL         string           `json:"sql,omitempty"`
	Results     []map[string]any `json:"results,omitempty"`
	ResultCount int              `json:"result_count"`
	Status      string           `json:"status"`
	Message     string           `json:"message,omitempty"`
	Error       string           `json:"error,omitempty"`
	CacheHit    bool             `json:"cache_hit"`
	CachedAt    *time.Time       `json:"cached_at,omitempty"`
}
