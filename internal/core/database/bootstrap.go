package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// EnsureBootstrapped creates the vector extension, the vector table and the
// meta marker table on first run, sized to the configured embedding
// dimension. A version row in askbase_meta marks a completed bootstrap; the
// script is idempotent so re-running after a partial failure is safe. When
// the schema already exists, the stored column dimension must match dim so
// a config change surfaces at startup instead of on the first insert.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, dim int) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'askbase_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(ctxBoot, db, dim)
	}

	var hasVersion bool
	if err := db.QueryRowContext(ctxBoot, `SELECT EXISTS (SELECT 1 FROM askbase_meta WHERE version = 1)`).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, db, dim)
	}

	return checkVectorDimension(ctxBoot, db, dim)
}

// bootstrapScript fills the embedding dimension into the init script.
func bootstrapScript(dim int) (string, error) {
	if dim <= 0 {
		return "", fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return fmt.Sprintf(string(raw), dim), nil
}

func runBootstrap(ctx context.Context, db *sql.DB, dim int) error {
	script, err := bootstrapScript(dim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

// checkVectorDimension compares the chunk_vectors embedding column against
// the configured dimension. pgvector stores the dimension as the column's
// type modifier.
func checkVectorDimension(ctx context.Context, db *sql.DB, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	var stored int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunk_vectors'::regclass AND attname = 'embedding'`).
		Scan(&stored)
	if err != nil {
		return fmt.Errorf("embedding column check failed: %w", err)
	}
	if stored != dim {
		return fmt.Errorf("chunk_vectors.embedding is vector(%d) but EMBED_DIM is %d; migrate the table or fix the config", stored, dim)
	}
	return nil
}
