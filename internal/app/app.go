package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/config"
	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/core/chunker"
	db "github.com/danielokafor-dev/askbase/internal/core/database"
	"github.com/danielokafor-dev/askbase/internal/core/layout"
	"github.com/danielokafor-dev/askbase/internal/core/llm"
	"github.com/danielokafor-dev/askbase/internal/core/storage"
	"github.com/danielokafor-dev/askbase/internal/core/token"
	"github.com/danielokafor-dev/askbase/internal/core/vector"
	"github.com/danielokafor-dev/askbase/internal/querycache"
	"github.com/danielokafor-dev/askbase/internal/services"
)

// App wires configuration into live services and owns their lifecycles.
type App struct {
	DB     *sql.DB
	Server *Server
	Log    *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := db.Connect(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database initialized and ready")

	backend, err := newStorageBackend(appCtx, cfg, log)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	log.Info("storage backend ready", zap.String("backend", cfg.StorageBackend))

	tok, err := token.NewTiktoken(token.DefaultEncoding)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("initialize tokenizer: %w", err)
	}

	embedder, generator, sqlLLM, err := newProviders(appCtx, cfg, tok)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	log.Info("AI providers ready",
		zap.String("provider", cfg.AIProvider),
		zap.String("embed_model", embedder.Model()),
		zap.String("gen_model", generator.Model()))

	index := vector.NewPgIndex(pool, cfg.EmbedDim, log)
	executor := db.NewExecutor(pool, log)
	cache := querycache.New(cfg.CacheEnabled, cfg.CacheTTLRAG, cfg.CacheTTLGen, cfg.CacheTTLRes, log)

	fallback, err := chunker.NewFallback(tok, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("configure fallback chunker: %w", err)
	}
	merger := chunker.NewMerger(tok, cfg.ChunkSize, cfg.MinChunkSize)

	ingestService := services.NewIngestService(
		backend,
		index,
		embedder,
		layout.NewMarkdownParser(),
		layout.NewDocconvExtractor(false),
		merger,
		fallback,
		cache,
		cfg.VectorNamespc,
		log,
	)
	ragService := services.NewRAGService(embedder, index, generator, cache, cfg.VectorNamespc, log)

	sqlAgent := llm.NewSQLAgent(sqlLLM, core.GenOptions{
		Temperature: cfg.SQLTemperature,
		TopP:        cfg.SQLTopP,
		Seed:        cfg.SQLSeed,
		MaxTokens:   cfg.SQLMaxTokens,
	})
	sqlService := services.NewSQLService(sqlAgent, executor, cache, log)
	sqlService.Train()

	server := NewServer(cfg, ingestService, ragService, sqlService, log)

	return &App{DB: pool, Server: server, Log: log}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func newStorageBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Backend(ctx, cfg, log)
	case "local", "":
		return storage.NewLocalBackend(cfg.CacheDir, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newProviders builds the embedding provider, the answer generator and the
// SQL generator's LLM for the configured provider. SQL generation may use a
// different model than answering, so it gets its own client.
func newProviders(ctx context.Context, cfg *config.Config, tok token.Tokenizer) (core.EmbeddingProvider, core.LLMProvider, core.LLMProvider, error) {
	switch cfg.AIProvider {
	case "openai":
		embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("openai embedder: %w", err)
		}
		generator, err := llm.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("openai llm: %w", err)
		}
		sqlLLM, err := llm.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.SQLModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("openai sql llm: %w", err)
		}
		return embedder, generator, sqlLLM, nil

	case "gemini":
		embedder, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim, tok)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini embedder: %w", err)
		}
		generator, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini llm: %w", err)
		}
		sqlLLM, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.SQLModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini sql llm: %w", err)
		}
		return embedder, generator, sqlLLM, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
