package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielokafor-dev/askbase/internal/core"
)

const sqlSystemPrompt = `You are an expert PostgreSQL analyst. Given database schema
documentation and a question, respond with exactly one SQL statement that
answers the question, inside a ` + "```sql" + ` code block. Use only the tables and
columns documented in the schema. Do not include any commentary outside the
code block.`

// sqlExplanation is the review note attached to every generated statement.
const sqlExplanation = "This SQL will retrieve data from your database. Please review before approving."

// SQLAgent turns questions into SQL through an LLM provider. The sampling
// options are fixed at construction; a zero temperature and a pinned seed
// keep repeated questions producing the same statement.
type SQLAgent struct {
	llm  core.LLMProvider
	opts core.GenOptions
}

func NewSQLAgent(llm core.LLMProvider, opts core.GenOptions) *SQLAgent {
	return &SQLAgent{llm: llm, opts: opts}
}

var _ core.SQLGenerator = (*SQLAgent)(nil)

func (a *SQLAgent) GenerateSQL(ctx context.Context, question, schemaContext string) (string, string, error) {
	userPrompt := question
	if schemaContext != "" {
		userPrompt = schemaContext + "\n\nQUESTION: " + question
	}

	raw, _, err := a.llm.Generate(ctx, sqlSystemPrompt, userPrompt, a.opts)
	if err != nil {
		return "", "", fmt.Errorf("generate sql: %w", err)
	}

	sql := extractSQL(raw)
	if sql == "" {
		return "", "", fmt.Errorf("model did not generate SQL; try rephrasing the question")
	}
	return sql, sqlExplanation, nil
}

// extractSQL pulls the statement out of a markdown ```sql fence. When the
// response has no fence at all it is taken as bare SQL, which some models
// return despite the instructions.
func extractSQL(response string) string {
	if !strings.Contains(strings.ToLower(response), "```") {
		return strings.TrimSpace(response)
	}

	var sql string
	for _, part := range strings.Split(response, "```") {
		trimmed := strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(trimmed), "sql") {
			sql = strings.TrimSpace(trimmed[3:])
		}
	}
	return sql
}
