package core

import (
	"context"

	"github.com/danielokafor-dev/askbase/internal/models"
)

// GenOptions carries the sampling configuration applied to every generation
// request. Passing it explicitly at call time replaces any notion of
// patching a client to force determinism: a zero Temperature plus a fixed
// Seed is how SQL generation stays reproducible.
type GenOptions struct {
	Temperature float32
	TopP        float32
	Seed        int
	MaxTokens   int
}

// EmbeddingProvider turns texts into fixed-length vectors. Implementations
// report token usage when the backing API does; providers that do not
// meter embeddings return an estimated count.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, models.Usage, error)
	Model() string
	Dimension() int
}

// LLMProvider generates a completion for a system/user prompt pair.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenOptions) (string, models.Usage, error)
	Model() string
}

// SQLGenerator produces a SQL statement for a natural-language question,
// grounded on a schema-context document. The explanation is shown to the
// human reviewing the statement.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question, schemaContext string) (sql string, explanation string, err error)
}
