package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapScriptUsesConfiguredDimension(t *testing.T) {
	script, err := bootstrapScript(768)
	require.NoError(t, err)

	assert.Contains(t, script, "vector(768)")
	assert.NotContains(t, script, "%d")
	assert.Contains(t, script, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, script, "askbase_meta")
}

func TestBootstrapScriptRejectsBadDimension(t *testing.T) {
	for _, dim := range []int{0, -1} {
		_, err := bootstrapScript(dim)
		assert.Error(t, err, "dim %d", dim)
	}
}
