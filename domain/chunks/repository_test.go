package chunks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSearchExprTsQuery(t *testing.T) {
	expr := chunkSearchExpr(true)

	assert.Contains(t, expr, "websearch_to_tsquery('simple', ?)")
	for _, col := range []string{
		"c.text", "d.source", "c.doc_type",
		"d.summary", "d.summary_short", "d.summary_medium", "d.summary_long",
	} {
		assert.Contains(t, expr, col, "search must cover %s", col)
	}
	assert.Equal(t, 8, strings.Count(expr, "?"))
}

func TestChunkSearchExprILikeFallback(t *testing.T) {
	expr := chunkSearchExpr(false)

	assert.NotContains(t, expr, "websearch_to_tsquery")
	assert.Contains(t, expr, "d.summary_long ILIKE ?")
	assert.Equal(t, 7, strings.Count(expr, "?"))
}

func TestChunkSearchArgs(t *testing.T) {
	args := chunkSearchArgs("auth flow", true)
	assert.Len(t, args, 8)
	assert.Equal(t, "auth flow", args[0])
	assert.Equal(t, "%auth flow%", args[1])

	args = chunkSearchArgs("auth flow", false)
	assert.Len(t, args, 7)
	assert.Equal(t, "%auth flow%", args[0])
}
