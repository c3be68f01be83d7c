package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragedhq/raged/pkg/apperror"
)

func requireFilterError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Equal(t, "filter_validation", appErr.Code)
}

func TestCompileEmptyFilter(t *testing.T) {
	compiled, err := Compile(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, compiled.SQL)
	assert.Empty(t, compiled.Args)

	compiled, err = Compile(map[string]any{}, 1)
	require.NoError(t, err)
	assert.Empty(t, compiled.SQL)
}

func TestCompileSingleCondition(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.doc_type = $1", compiled.SQL)
	assert.Equal(t, []any{"code"}, compiled.Args)
}

func TestCompileOrCombine(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
			map[string]any{"field": "lang", "op": "eq", "value": "ts"},
		},
		"combine": "or",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND (c.doc_type = $1 OR c.lang = $2)", compiled.SQL)
	assert.Equal(t, []any{"code", "ts"}, compiled.Args)
}

func TestCompileArgOffset(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
			map[string]any{"field": "lang", "op": "in", "values": []any{"go", "ts"}},
		},
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, " AND (c.doc_type = $3 AND c.lang IN ($4, $5))", compiled.SQL)
	assert.Equal(t, []any{"code", "go", "ts"}, compiled.Args)
}

func TestCompilePathPrefixMatch(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "path", "op": "eq", "value": "src/"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.path LIKE $1 || '%'", compiled.SQL)
	assert.Equal(t, []any{"src/"}, compiled.Args)

	compiled, err = Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "path", "op": "ne", "value": "vendor/"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.path NOT LIKE $1 || '%'", compiled.SQL)
}

func TestCompileDocumentAliasFields(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "baseId", "op": "eq", "value": "readme"},
			map[string]any{"field": "mimeType", "op": "ne", "value": "text/html"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND (d.base_id = $1 AND d.mime_type <> $2)", compiled.SQL)
}

func TestCompileAliasMismatch(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code", "alias": "d"},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileExplicitAliasMatch(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code", "alias": "c"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.doc_type = $1", compiled.SQL)
}

func TestCompileUnknownField(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "password", "op": "eq", "value": "x"},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileDisallowedOp(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "gt", "value": "code"},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileUnknownOp(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "like", "value": "code"},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileEmptyInList(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "lang", "op": "in", "values": []any{}},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileBetween(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "chunkIndex", "op": "between", "range": []any{float64(0), float64(10)}},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.chunk_index BETWEEN $1 AND $2", compiled.SQL)
	assert.Equal(t, []any{float64(0), float64(10)}, compiled.Args)
}

func TestCompileBetweenMissingBound(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "chunkIndex", "op": "between", "range": []any{float64(0)}},
		},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileNullChecks(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "lang", "op": "isNull"},
			map[string]any{"field": "repoId", "op": "isNotNull"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND (c.lang IS NULL AND c.repo_id IS NOT NULL)", compiled.SQL)
	assert.Empty(t, compiled.Args)
}

func TestCompileInvalidCombine(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
		},
		"combine": "xor",
	}, 1)
	requireFilterError(t, err)
}

func TestCompileLegacyShorthand(t *testing.T) {
	compiled, err := Compile(map[string]any{"docType": "code"}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.doc_type = $1", compiled.SQL)
	assert.Equal(t, []any{"code"}, compiled.Args)
}

func TestCompileLegacyMust(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"must": []any{
			map[string]any{"field": "docType", "value": "code"},
		},
		"must_not": []any{
			map[string]any{"field": "lang", "value": "js"},
		},
	}, 1)
	require.NoError(t, err)
	assert.Len(t, compiled.Args, 2)
	assert.Contains(t, compiled.SQL, "c.doc_type = $")
	assert.Contains(t, compiled.SQL, "c.lang <> $")
}

func TestCompileLegacyMustNotNegatesIn(t *testing.T) {
	compiled, err := Compile(map[string]any{
		"must_not": []any{
			map[string]any{"field": "lang", "op": "in", "values": []any{"js", "ts"}},
		},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, " AND c.lang NOT IN ($1, $2)", compiled.SQL)
}

func TestCompileRejectsMixedShapes(t *testing.T) {
	_, err := Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
		},
		"docType": "code",
	}, 1)
	requireFilterError(t, err)

	_, err = Compile(map[string]any{
		"conditions": []any{
			map[string]any{"field": "docType", "op": "eq", "value": "code"},
		},
		"must": []any{},
	}, 1)
	requireFilterError(t, err)
}

func TestCompileUnknownLegacyField(t *testing.T) {
	_, err := Compile(map[string]any{"secret": "x"}, 1)
	requireFilterError(t, err)
}
