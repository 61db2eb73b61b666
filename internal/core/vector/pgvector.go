package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/core"
)

const upsertBatchSize = 100

// PgIndex is the pgvector-backed similarity store. Vectors live in the
// chunk_vectors table keyed by (namespace, id); metadata filters are
// jsonb containment matches.
type PgIndex struct {
	db  *sql.DB
	dim int
	log *zap.Logger
}

func NewPgIndex(db *sql.DB, dim int, log *zap.Logger) *PgIndex {
	return &PgIndex{db: db, dim: dim, log: log}
}

var _ core.VectorIndex = (*PgIndex)(nil)

// Upsert writes items in batches of 100, one transaction per batch.
// Re-upserting an id overwrites its embedding and metadata.
func (p *PgIndex) Upsert(ctx context.Context, namespace string, items []core.VectorItem) error {
	for batchStart := 0; batchStart < len(items); batchStart += upsertBatchSize {
		batchEnd := batchStart + upsertBatchSize
		if batchEnd > len(items) {
			batchEnd = len(items)
		}
		if err := p.upsertBatch(ctx, namespace, items[batchStart:batchEnd]); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", batchStart, err)
		}
	}
	p.log.Debug("vectors upserted",
		zap.String("namespace", namespace),
		zap.Int("count", len(items)))
	return nil
}

func (p *PgIndex) upsertBatch(ctx context.Context, namespace string, items []core.VectorItem) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunk_vectors (id, namespace, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (namespace, id)
		DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range items {
		it := &items[i]
		if len(it.Values) != p.dim {
			_ = tx.Rollback()
			return fmt.Errorf("vector %q has dimension %d, index expects %d", it.ID, len(it.Values), p.dim)
		}
		meta, err := json.Marshal(it.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal metadata for %q: %w", it.ID, err)
		}
		vec := pgvector.NewVector(it.Values)
		if _, err := stmt.ExecContext(ctx, it.ID, namespace, vec, meta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns the topK nearest vectors by cosine similarity, optionally
// restricted to rows whose metadata contains every filter pair.
func (p *PgIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]core.VectorMatch, error) {
	if topK <= 0 {
		return []core.VectorMatch{}, nil
	}

	q := `
		SELECT id, metadata, 1 - (embedding <=> $2) AS score
		FROM chunk_vectors
		WHERE namespace = $1
	`
	args := []any{namespace, pgvector.NewVector(vector)}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		q += ` AND metadata @> $3::jsonb`
		args = append(args, filterJSON)
	}
	q += fmt.Sprintf(` ORDER BY embedding <=> $2 LIMIT %d`, topK)

	start := time.Now()
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]core.VectorMatch, 0, topK)
	for rows.Next() {
		var (
			m        core.VectorMatch
			metaJSON []byte
		)
		if err := rows.Scan(&m.ID, &metaJSON, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %q: %w", m.ID, err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	p.log.Debug("vector query",
		zap.String("namespace", namespace),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))
	return matches, nil
}

// DeleteByFilter removes every vector in the namespace whose metadata
// contains the filter pairs. An empty filter clears the whole namespace.
func (p *PgIndex) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	q := `DELETE FROM chunk_vectors WHERE namespace = $1`
	args := []any{namespace}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return fmt.Errorf("marshal filter: %w", err)
		}
		q += ` AND metadata @> $2::jsonb`
		args = append(args, filterJSON)
	}

	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	n, _ := res.RowsAffected()
	p.log.Debug("vectors deleted",
		zap.String("namespace", namespace),
		zap.Int64("count", n))
	return nil
}

// Stats reports per-namespace vector counts and the configured dimension.
func (p *PgIndex) Stats(ctx context.Context) (core.IndexStats, error) {
	stats := core.IndexStats{
		Dimension:  p.dim,
		Namespaces: make(map[string]int),
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT namespace, count(*)
		FROM chunk_vectors
		GROUP BY namespace
	`)
	if err != nil {
		return stats, fmt.Errorf("count vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ns string
			n  int
		)
		if err := rows.Scan(&ns, &n); err != nil {
			return stats, err
		}
		stats.Namespaces[ns] = n
		stats.TotalVectors += n
	}
	return stats, rows.Err()
}
