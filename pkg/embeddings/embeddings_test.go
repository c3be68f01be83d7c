package embeddings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragedhq/raged/pkg/apperror"
)

// stubClient returns canned vectors, or an error.
type stubClient struct {
	dim int
	err error
	bad []float32
}

func (c *stubClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.bad != nil {
		return c.bad, nil
	}
	return make([]float32, c.dim), nil
}

func (c *stubClient) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(documents))
	for i := range documents {
		vec := make([]float32, c.dim)
		vec[0] = float32(i)
		out[i] = vec
	}
	return out, nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNoopClientReturnsNil(t *testing.T) {
	client := NewNoopClient()

	vec, err := client.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Nil(t, vec)

	vecs, err := client.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestNoopServiceDisabled(t *testing.T) {
	svc := NewNoopService(testLog(), 768)
	assert.False(t, svc.IsEnabled())
	assert.Equal(t, 768, svc.Dimension())

	vecs, err := svc.EmbedDocuments(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	svc := &Service{client: &stubClient{dim: 4}, enabled: true, dim: 4, concurrency: 2}
	vecs, err := svc.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedDocumentsPreservesOrder(t *testing.T) {
	svc := &Service{client: &stubClient{dim: 4}, enabled: true, dim: 4, concurrency: 3}

	docs := make([]string, 100)
	for i := range docs {
		docs[i] = "doc"
	}

	vecs, err := svc.EmbedDocuments(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, vecs, 100)
	for i, vec := range vecs {
		assert.Equal(t, float32(i), vec[0], "vector %d out of order", i)
	}
}

func TestEmbedDocumentsUpstreamError(t *testing.T) {
	svc := &Service{
		client:      &stubClient{err: errors.New("backend down")},
		enabled:     true,
		dim:         4,
		concurrency: 1,
	}

	_, err := svc.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "upstream_service_error", appErr.Code)
}

func TestEmbedQueryDimensionMismatch(t *testing.T) {
	svc := &Service{
		client:  &stubClient{bad: make([]float32, 3)},
		enabled: true,
		dim:     4,
	}

	_, err := svc.EmbedQuery(context.Background(), "query")
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "vector_dim_mismatch", appErr.Code)
}

func TestEmbedQueryRejectsNonFinite(t *testing.T) {
	svc := &Service{
		client:  &stubClient{bad: []float32{1, float32(math.NaN()), 3, 4}},
		enabled: true,
		dim:     4,
	}

	_, err := svc.EmbedQuery(context.Background(), "query")
	require.Error(t, err)
}
