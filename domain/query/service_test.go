package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragedhq/raged/pkg/apperror"
)

func TestAutoMinScore(t *testing.T) {
	tests := []struct {
		query string
		want  float64
	}{
		{"", 0.3},
		{"hello", 0.3},
		{"hello world", 0.4},
		{"three word query", 0.5},
		{"four word query here", 0.5},
		{"five whole words right here", 0.6},
		{"a much longer natural language question about things", 0.6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autoMinScore(tt.query), "query %q", tt.query)
	}
}

func TestResolveStrategyExplicit(t *testing.T) {
	strategy, confidence, err := resolveStrategy(Request{Query: "hi", Strategy: "semantic"}, true)
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, strategy)
	assert.Equal(t, 1.0, confidence)

	strategy, _, err = resolveStrategy(Request{Query: "hi", Strategy: "fulltext"}, true)
	require.NoError(t, err)
	assert.Equal(t, StrategyFulltext, strategy)

	strategy, _, err = resolveStrategy(Request{Strategy: "metadata"}, true)
	require.NoError(t, err)
	assert.Equal(t, StrategyMetadata, strategy)
}

func TestResolveStrategySemanticDegradesWithoutEmbedder(t *testing.T) {
	strategy, confidence, err := resolveStrategy(Request{Query: "hi", Strategy: "semantic"}, false)
	require.NoError(t, err)
	assert.Equal(t, StrategyFulltext, strategy)
	assert.Less(t, confidence, 1.0)
}

func TestResolveStrategyRules(t *testing.T) {
	strategy, _, err := resolveStrategy(Request{Query: "hello there"}, true)
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, strategy)

	strategy, _, err = resolveStrategy(Request{Query: "hello there"}, false)
	require.NoError(t, err)
	assert.Equal(t, StrategyFulltext, strategy)

	strategy, _, err = resolveStrategy(Request{Filter: map[string]any{"docType": "code"}}, true)
	require.NoError(t, err)
	assert.Equal(t, StrategyMetadata, strategy)
}

func TestResolveStrategyEmptyQuery(t *testing.T) {
	_, _, err := resolveStrategy(Request{}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrEmptyQuery)

	_, _, err = resolveStrategy(Request{Query: "   ", Strategy: "semantic"}, true)
	require.Error(t, err)

	_, _, err = resolveStrategy(Request{Query: "", Strategy: "fulltext"}, true)
	require.Error(t, err)
}

func TestResolveStrategyUnknown(t *testing.T) {
	_, _, err := resolveStrategy(Request{Query: "hi", Strategy: "vibes"}, true)
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.HTTPStatus)
}

func TestFilterOffset(t *testing.T) {
	assert.Equal(t, 3, filterOffset(StrategySemantic))
	assert.Equal(t, 3, filterOffset(StrategyFulltext))
	assert.Equal(t, 2, filterOffset(StrategyMetadata))
}

func TestCollectionOr(t *testing.T) {
	assert.Equal(t, "default", collectionOr(""))
	assert.Equal(t, "docs", collectionOr("docs"))
}
