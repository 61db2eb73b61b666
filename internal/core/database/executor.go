package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/core"
)

const executeTimeout = 60 * time.Second

// Executor runs already-approved SQL against the shared pool and returns
// rows as generic maps. It performs no validation of its own: the approval
// workflow decides what reaches it.
type Executor struct {
	db  *sql.DB
	log *zap.Logger
}

func NewExecutor(db *sql.DB, log *zap.Logger) *Executor {
	return &Executor{db: db, log: log}
}

var _ core.SQLExecutor = (*Executor)(nil)

func (e *Executor) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	e.log.Debug("query executed",
		zap.Int("rows", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// normalizeValue makes scanned values JSON-friendly. The pgx stdlib driver
// hands back []byte for text-ish columns when no destination type is given.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case sql.RawBytes:
		return string(t)
	default:
		return v
	}
}
