package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Postgres (vector index + SQL execution)
	DatabaseURL string

	// AI providers
	AIProvider   string // "openai" or "gemini"
	OpenAIAPIKey string
	GeminiAPIKey string
	EmbedModel   string
	EmbedDim     int
	GenModel     string
	SQLModel     string

	// SQL generation determinism knobs
	SQLTemperature float32
	SQLTopP        float32
	SQLSeed        int
	SQLMaxTokens   int

	// Storage backend selection
	StorageBackend string // "local" or "s3"
	CacheDir       string
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string

	// Chunking
	ChunkSize    int
	MinChunkSize int
	ChunkOverlap int

	// Query caching
	CacheEnabled  bool
	CacheTTLRAG   time.Duration
	CacheTTLGen   time.Duration
	CacheTTLRes   time.Duration
	VectorNamespc string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AIProvider:   getEnv("AI_PROVIDER", "openai"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:     getEnvInt("EMBED_DIM", 1536),
		GenModel:     getEnv("GEN_MODEL", "gpt-4-turbo-preview"),
		SQLModel:     getEnv("SQL_MODEL", "gpt-4o"),

		SQLTemperature: float32(getEnvFloat("SQL_TEMPERATURE", 0.0)),
		SQLTopP:        float32(getEnvFloat("SQL_TOP_P", 1.0)),
		SQLSeed:        getEnvInt("SQL_SEED", 42),
		SQLMaxTokens:   getEnvInt("SQL_MAX_TOKENS", 500),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		CacheDir:       getEnv("CACHE_DIR", "data/cached_chunks"),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "askbase-docs"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 512),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 256),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),

		CacheEnabled:  getEnvBool("CACHE_ENABLED", true),
		CacheTTLRAG:   getEnvDuration("CACHE_TTL_RAG", time.Hour),
		CacheTTLGen:   getEnvDuration("CACHE_TTL_SQL_GEN", 24*time.Hour),
		CacheTTLRes:   getEnvDuration("CACHE_TTL_SQL_RESULT", 15*time.Minute),
		VectorNamespc: getEnv("VECTOR_NAMESPACE", "default"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.AIProvider == "openai" && cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}
	if cfg.AIProvider == "gemini" && cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		log.Fatalf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
