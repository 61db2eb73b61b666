package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Type selects one of the three independent cache stores. Each has its own
// TTL tuned to how quickly its data goes stale: RAG answers an hour, generated
// SQL a day (schemas rarely change), query results fifteen minutes.
type Type string

const (
	TypeRAG       Type = "rag"
	TypeSQLGen    Type = "sql_gen"
	TypeSQLResult Type = "sql_result"
)

// Cache holds the three stores. A disabled cache degrades to pass-through:
// every Get misses and every Set is dropped, so callers never branch on the
// enabled flag themselves.
type Cache struct {
	enabled bool
	rag     *gocache.Cache
	sqlGen  *gocache.Cache
	sqlRes  *gocache.Cache
	log     *zap.Logger
}

func New(enabled bool, ttlRAG, ttlGen, ttlRes time.Duration, log *zap.Logger) *Cache {
	return &Cache{
		enabled: enabled,
		rag:     gocache.New(ttlRAG, 10*time.Minute),
		sqlGen:  gocache.New(ttlGen, 10*time.Minute),
		sqlRes:  gocache.New(ttlRes, time.Minute),
		log:     log,
	}
}

func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) Get(t Type, key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}
	v, ok := c.store(t).Get(key)
	if ok {
		c.log.Debug("cache hit", zap.String("type", string(t)), zap.String("key", key))
	}
	return v, ok
}

// Set stores the value under the store's default TTL.
func (c *Cache) Set(t Type, key string, value any) {
	if !c.enabled {
		return
	}
	c.store(t).SetDefault(key, value)
}

func (c *Cache) Delete(t Type, key string) {
	if !c.enabled {
		return
	}
	c.store(t).Delete(key)
}

// Flush clears one store, typically after a document delete invalidates RAG
// answers, or a schema change invalidates generated SQL.
func (c *Cache) Flush(t Type) {
	c.store(t).Flush()
}

// ItemCount reports live entries per store for the stats endpoint.
func (c *Cache) ItemCount() map[Type]int {
	return map[Type]int{
		TypeRAG:       c.rag.ItemCount(),
		TypeSQLGen:    c.sqlGen.ItemCount(),
		TypeSQLResult: c.sqlRes.ItemCount(),
	}
}

func (c *Cache) store(t Type) *gocache.Cache {
	switch t {
	case TypeSQLGen:
		return c.sqlGen
	case TypeSQLResult:
		return c.sqlRes
	default:
		return c.rag
	}
}

// RAGKey derives the cache key for an answer. The retrieval depth is part of
// the key: the same question with a different top-k reads different context
// and may answer differently.
func RAGKey(question string, topK int) string {
	return hashKey("rag", fmt.Sprintf("%s|k=%d", question, topK))
}

// SQLGenKey keys on the exact question text. No normalization: even
// whitespace variants re-generate, which keeps the cache conservative.
func SQLGenKey(question string) string {
	return hashKey("sql_gen", question)
}

// SQLResultKey keys on the normalized statement so trivially reformatted SQL
// shares one entry.
func SQLResultKey(sql string) string {
	return hashKey("sql_result", NormalizeSQL(sql))
}

// NormalizeSQL collapses runs of whitespace to single spaces and drops a
// trailing semicolon. It deliberately does not change case: identifiers and
// string literals are case-significant.
func NormalizeSQL(sql string) string {
	normalized := strings.Join(strings.Fields(sql), " ")
	normalized = strings.TrimSuffix(normalized, ";")
	return strings.TrimSpace(normalized)
}

func hashKey(prefix, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return prefix + ":" + hex.EncodeToString(sum[:])
}
