package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/models"
)

// OpenAIEmbedder embeds texts with the OpenAI embeddings API. One request
// carries the whole batch; the API reports real token usage.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(apiKey, model string, dim int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is empty")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}, nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, models.Usage, error) {
	if len(texts) == 0 {
		return [][]float32{}, models.Usage{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, models.Usage{}, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, models.Usage{}, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		out[d.Index] = vec
	}

	usage := models.Usage{
		EmbeddingTokens: resp.Usage.PromptTokens,
		TotalTokens:     resp.Usage.TotalTokens,
	}
	return out, usage, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

// OpenAILLM generates chat completions. Sampling options are applied per
// request, including the seed, which the chat API accepts for best-effort
// deterministic output.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKey, model string) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is empty")
	}
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	return &OpenAILLM{client: openai.NewClient(apiKey), model: model}, nil
}

func (l *OpenAILLM) Generate(ctx context.Context, systemPrompt, userPrompt string, opts core.GenOptions) (string, models.Usage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.TopP > 0 {
		req.TopP = opts.TopP
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", models.Usage{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.Usage{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	usage := models.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (l *OpenAILLM) Model() string { return l.model }

var _ core.LLMProvider = (*OpenAILLM)(nil)
