package core

import (
	"context"
)

// VectorItem is one (id, embedding, metadata) tuple for upsert.
type VectorItem struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// VectorMatch is one ranked result from a similarity query.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// IndexStats summarizes the vector index contents.
type IndexStats struct {
	TotalVectors int            `json:"total_vector_count"`
	Dimension    int            `json:"dimension"`
	Namespaces   map[string]int `json:"namespaces"`
}

// VectorIndex abstracts the similarity store. Namespaces isolate unrelated
// collections; the filter matches on metadata equality. Upserts are
// overwrite-by-id, so re-ingesting a document is idempotent.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, items []VectorItem) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]VectorMatch, error)
	DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error
	Stats(ctx context.Context) (IndexStats, error)
}

// SQLExecutor runs a statement against the relational store and returns the
// rows as column-name→value maps. Driver-level failures surface as wrapped
// errors distinct from SQL errors only insofar as the driver distinguishes
// them; callers treat both as execution failure.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}
