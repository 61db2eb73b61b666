package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/core"
	"github.com/danielokafor-dev/askbase/internal/models"
	"github.com/danielokafor-dev/askbase/internal/querycache"
)

// ErrQueryNotFound is returned when a resolution targets an id that is not
// in the pending ledger, including ids that were already resolved once.
var ErrQueryNotFound = errors.New("query not found")

// ErrNotTrained is returned when SQL generation is requested before the
// schema context has been prepared.
var ErrNotTrained = errors.New("schema context not prepared")

// rejectedMessage mirrors the wording shown to users when they decline a
// statement.
const rejectedMessage = "Query execution cancelled by user"

// SQLService runs the text-to-SQL approval workflow. Generated statements
// are parked in an in-memory ledger under a fresh uuid and never executed
// until a human approves them. Every resolution, whatever its outcome,
// removes the ledger entry: a query id is good for exactly one decision.
type SQLService struct {
	generator core.SQLGenerator
	executor  core.SQLExecutor
	cache     *querycache.Cache
	log       *zap.Logger

	mu            sync.Mutex
	pending       map[string]models.PendingQuery
	schemaContext string
	trained       bool
}

func NewSQLService(generator core.SQLGenerator, executor core.SQLExecutor, cache *querycache.Cache, log *zap.Logger) *SQLService {
	return &SQLService{
		generator: generator,
		executor:  executor,
		cache:     cache,
		log:       log,
		pending:   make(map[string]models.PendingQuery),
	}
}

// Train prepares the schema context handed to the generator with every
// question. Must be called once before Generate.
func (s *SQLService) Train() {
	doc := buildSchemaContext()
	s.mu.Lock()
	s.schemaContext = doc
	s.trained = true
	s.mu.Unlock()
	s.log.Info("schema context prepared", zap.Int("bytes", len(doc)))
}

// cached generation payload
type genCacheEntry struct {
	SQL         string
	Explanation string
}

// cached execution payload
type resultCacheEntry struct {
	Results     []map[string]any
	ResultCount int
	ExecutedAt  time.Time
}

// Generate produces SQL for the question and parks it for approval. A
// generation-cache hit reuses the statement but still mints a fresh query
// id: cached SQL needs human review exactly like fresh SQL.
func (s *SQLService) Generate(ctx context.Context, question string) (*models.SQLGenerateResult, error) {
	s.mu.Lock()
	trained := s.trained
	schemaContext := s.schemaContext
	s.mu.Unlock()
	if !trained {
		return nil, ErrNotTrained
	}

	var (
		sql         string
		explanation string
		cacheHit    bool
	)

	genKey := querycache.SQLGenKey(question)
	if v, ok := s.cache.Get(querycache.TypeSQLGen, genKey); ok {
		if entry, ok := v.(genCacheEntry); ok {
			sql, explanation, cacheHit = entry.SQL, entry.Explanation, true
		}
	}

	if !cacheHit {
		var err error
		sql, explanation, err = s.generator.GenerateSQL(ctx, question, schemaContext)
		if err != nil {
			return nil, fmt.Errorf("generate sql for %q: %w", question, err)
		}
		s.cache.Set(querycache.TypeSQLGen, genKey, genCacheEntry{SQL: sql, Explanation: explanation})
	}

	queryID := uuid.NewString()
	entry := models.PendingQuery{
		QueryID:     queryID,
		Question:    question,
		SQL:         sql,
		Status:      models.StatusPendingApproval,
		GeneratedAt: time.Now().UTC(),
		CacheHit:    cacheHit,
	}

	s.mu.Lock()
	s.pending[queryID] = entry
	s.mu.Unlock()

	s.log.Info("sql generated, awaiting approval",
		zap.String("query_id", queryID),
		zap.Bool("cache_hit", cacheHit))

	return &models.SQLGenerateResult{
		QueryID:     queryID,
		Question:    question,
		SQL:         sql,
		Explanation: explanation,
		Status:      models.StatusPendingApproval,
		CacheHit:    cacheHit,
	}, nil
}

// Resolve applies the human decision to a pending query. The ledger entry
// is removed in the same locked step as the lookup, so a second resolution
// of the same id reports ErrQueryNotFound regardless of what the first one
// did, and an execution failure cannot leave a retryable entry behind.
func (s *SQLService) Resolve(ctx context.Context, queryID string, approved bool) (*models.SQLResolveResult, error) {
	s.mu.Lock()
	entry, ok := s.pending[queryID]
	if ok {
		delete(s.pending, queryID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", queryID, ErrQueryNotFound)
	}

	if !approved {
		s.log.Info("sql rejected", zap.String("query_id", queryID))
		return &models.SQLResolveResult{
			QueryID: queryID,
			Status:  models.StatusRejected,
			Message: rejectedMessage,
		}, nil
	}

	isSelect := isSelectStatement(entry.SQL)
	resultKey := querycache.SQLResultKey(entry.SQL)

	if isSelect {
		if v, ok := s.cache.Get(querycache.TypeSQLResult, resultKey); ok {
			if cached, ok := v.(resultCacheEntry); ok {
				cachedAt := cached.ExecutedAt
				return &models.SQLResolveResult{
					QueryID:     queryID,
					Question:    entry.Question,
					SQL:         entry.SQL,
					Results:     cached.Results,
					ResultCount: cached.ResultCount,
					Status:      models.StatusExecuted,
					CacheHit:    true,
					CachedAt:    &cachedAt,
				}, nil
			}
		}
	}

	results, err := s.executor.Execute(ctx, entry.SQL)
	if err != nil {
		s.log.Warn("sql execution failed",
			zap.String("query_id", queryID),
			zap.Error(err))
		return &models.SQLResolveResult{
			QueryID: queryID,
			Status:  models.StatusError,
			Error:   err.Error(),
		}, nil
	}

	// Only read-only statements are safe to serve from cache.
	if isSelect {
		s.cache.Set(querycache.TypeSQLResult, resultKey, resultCacheEntry{
			Results:     results,
			ResultCount: len(results),
			ExecutedAt:  time.Now().UTC(),
		})
	}

	s.log.Info("sql executed",
		zap.String("query_id", queryID),
		zap.Int("rows", len(results)))

	return &models.SQLResolveResult{
		QueryID:     queryID,
		Question:    entry.Question,
		SQL:         entry.SQL,
		Results:     results,
		ResultCount: len(results),
		Status:      models.StatusExecuted,
	}, nil
}

// PendingQueries lists the ledger, oldest first.
func (s *SQLService) PendingQueries() []models.PendingQuery {
	s.mu.Lock()
	out := make([]models.PendingQuery, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, entry)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.Before(out[j].GeneratedAt)
	})
	return out
}

func isSelectStatement(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
}

// buildSchemaContext renders the schema documentation and worked examples
// the generator needs to write correct SQL against the demo e-commerce
// database.
func buildSchemaContext() string {
	var b strings.Builder

	b.WriteString("DATABASE SCHEMA DOCUMENTATION\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")

	b.WriteString(`
This is an e-commerce database with three main tables:
- customers: Contains customer information including name, email, segment (SMB, Enterprise, Individual), and country
- products: Product catalog with name, category, price, stock quantity, and description
- orders: Customer orders with order date, total amount, status (Pending, Delivered, Cancelled, Processing), and shipping address

The customers table has a one-to-many relationship with orders (one customer can have many orders).

IMPORTANT NOTES:
- For order revenue/pricing, use orders.total_amount (NOT 'price')
- Customer segments: 'SMB', 'Enterprise', 'Individual' (case-sensitive)
- Order statuses: 'Pending', 'Delivered', 'Cancelled', 'Processing' (case-sensitive)
- To join customers and orders: JOIN orders ON customers.id = orders.customer_id
`)

	b.WriteString("\nTABLE SCHEMAS:\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")

	b.WriteString(`
Table: customers
Columns:
  - id (SERIAL PRIMARY KEY)
  - name (VARCHAR) - Customer full name
  - email (VARCHAR) - Customer email address
  - segment (VARCHAR) - One of: 'SMB', 'Enterprise', 'Individual'
  - country (VARCHAR) - Customer country
  - created_at (TIMESTAMP)
  - updated_at (TIMESTAMP)

Table: products
Columns:
  - id (SERIAL PRIMARY KEY)
  - name (VARCHAR) - Product name
  - category (VARCHAR) - Product category (Electronics, Software, Hardware, etc.)
  - price (DECIMAL) - Product unit price
  - stock_quantity (INT) - Current inventory count
  - description (TEXT)
  - created_at (TIMESTAMP)
  - updated_at (TIMESTAMP)

Table: orders
Columns:
  - id (SERIAL PRIMARY KEY)
  - customer_id (INT) - Foreign key to customers.id
  - order_date (DATE) - Date of order
  - total_amount (DECIMAL) - TOTAL ORDER PRICE (use this for revenue, NOT 'price'!)
  - status (VARCHAR) - One of: 'Pending', 'Delivered', 'Cancelled', 'Processing'
  - shipping_address (TEXT)
  - created_at (TIMESTAMP)
  - updated_at (TIMESTAMP)
`)

	b.WriteString("\nEXAMPLE QUERIES:\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")

	examples := []struct {
		question string
		sql      string
	}{
		{"How many customers do we have?", "SELECT COUNT(*) as customer_count FROM customers;"},
		{"What is the total revenue from all orders?", "SELECT SUM(total_amount) as total_revenue FROM orders;"},
		{"List all delivered orders", "SELECT * FROM orders WHERE status = 'Delivered' ORDER BY order_date DESC;"},
		{"How many orders per customer segment?", "SELECT c.segment, COUNT(o.id) as order_count FROM customers c LEFT JOIN orders o ON c.id = o.customer_id GROUP BY c.segment;"},
		{"Top 10 customers by total spending", "SELECT c.name, c.email, SUM(o.total_amount) as total_spent FROM customers c JOIN orders o ON c.id = o.customer_id GROUP BY c.id, c.name, c.email ORDER BY total_spent DESC LIMIT 10;"},
	}
	for i, ex := range examples {
		fmt.Fprintf(&b, "\nExample %d:\nQuestion: %s\nSQL: %s\n", i+1, ex.question, ex.sql)
	}

	return b.String()
}
