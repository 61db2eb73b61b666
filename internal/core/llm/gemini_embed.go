package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/core/token"
	"github.com/danielokafor-dev/askbase/internal/models"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
	tok       token.Tokenizer
}

// NewGeminiEmbedder builds the Gemini embedding provider. The batch
// embedding API does not report token usage, so usage figures are estimated
// locally with the tokenizer.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int, tok token.Tokenizer) (*GeminiEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim, tok: tok}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts batches all texts in one request via EmbeddingBatch.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, models.Usage, error) {
	var usage models.Usage
	if len(texts) == 0 {
		return [][]float32{}, usage, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
		usage.EmbeddingTokens += g.tok.Count(t)
	}
	usage.TotalTokens = usage.EmbeddingTokens

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("gemini batch embed: %w", err)
	}

	out, err := collectEmbeddings(resp, len(texts), g.dim)
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("gemini batch embed: %w", err)
	}
	return out, usage, nil
}

// collectEmbeddings unpacks a batch response, checking the count against the
// request and every vector against the configured dimension. The API always
// returns the model's native dimensionality, so a model/config mismatch
// surfaces here rather than as a rejected insert downstream.
func collectEmbeddings(resp *genai.BatchEmbedContentsResponse, want, dim int) ([][]float32, error) {
	if got := len(resp.Embeddings); got != want {
		return nil, fmt.Errorf("got %d embeddings for %d texts", got, want)
	}
	out := make([][]float32, 0, want)
	for i, e := range resp.Embeddings {
		if dim > 0 && len(e.Values) != dim {
			return nil, fmt.Errorf("embedding %d has %d values, want %d", i, len(e.Values), dim)
		}
		out = append(out, e.Values)
	}
	return out, nil
}

func (g *GeminiEmbedder) Model() string { return g.modelName }

func (g *GeminiEmbedder) Dimension() int { return g.dim }

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
