package querycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(enabled bool) *Cache {
	return New(enabled, time.Hour, 24*time.Hour, 15*time.Minute, zap.NewNop())
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(true)

	c.Set(TypeRAG, "k", "answer")
	v, ok := c.Get(TypeRAG, "k")
	require.True(t, ok)
	assert.Equal(t, "answer", v)
}

func TestCache_TypesAreIndependent(t *testing.T) {
	c := newTestCache(true)

	c.Set(TypeRAG, "k", "rag-value")
	c.Set(TypeSQLGen, "k", "gen-value")

	v, ok := c.Get(TypeRAG, "k")
	require.True(t, ok)
	assert.Equal(t, "rag-value", v)

	v, ok = c.Get(TypeSQLGen, "k")
	require.True(t, ok)
	assert.Equal(t, "gen-value", v)

	_, ok = c.Get(TypeSQLResult, "k")
	assert.False(t, ok)
}

func TestCache_DisabledIsPassThrough(t *testing.T) {
	c := newTestCache(false)

	c.Set(TypeRAG, "k", "answer")
	_, ok := c.Get(TypeRAG, "k")
	assert.False(t, ok)
}

func TestCache_DeleteAndFlush(t *testing.T) {
	c := newTestCache(true)

	c.Set(TypeSQLResult, "a", 1)
	c.Set(TypeSQLResult, "b", 2)

	c.Delete(TypeSQLResult, "a")
	_, ok := c.Get(TypeSQLResult, "a")
	assert.False(t, ok)

	c.Flush(TypeSQLResult)
	_, ok = c.Get(TypeSQLResult, "b")
	assert.False(t, ok)
}

func TestRAGKey_IncludesRetrievalDepth(t *testing.T) {
	assert.NotEqual(t, RAGKey("question", 5), RAGKey("question", 10))
	assert.Equal(t, RAGKey("question", 5), RAGKey("question", 5))
}

func TestSQLGenKey_IsExactText(t *testing.T) {
	assert.NotEqual(t, SQLGenKey("how many customers?"), SQLGenKey("How many customers?"))
	assert.NotEqual(t, SQLGenKey("how many customers?"), SQLGenKey("how many  customers?"))
}

func TestSQLResultKey_NormalizesStatement(t *testing.T) {
	a := SQLResultKey("SELECT *\n  FROM orders;")
	b := SQLResultKey("SELECT * FROM orders")
	assert.Equal(t, a, b)

	// Case stays significant: quoted identifiers and literals differ.
	assert.NotEqual(t, SQLResultKey("SELECT * FROM orders"), SQLResultKey("select * from orders"))
}

func TestNormalizeSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", NormalizeSQL("  SELECT\t\n 1 ;  "))
	assert.Equal(t, "SELECT 1", NormalizeSQL("SELECT 1"))
	assert.Equal(t, "", NormalizeSQL("   "))
}

func TestCache_ItemCount(t *testing.T) {
	c := newTestCache(true)
	c.Set(TypeRAG, "a", 1)
	c.Set(TypeRAG, "b", 2)
	c.Set(TypeSQLGen, "c", 3)

	counts := c.ItemCount()
	assert.Equal(t, 2, counts[TypeRAG])
	assert.Equal(t, 1, counts[TypeSQLGen])
	assert.Equal(t, 0, counts[TypeSQLResult])
}
