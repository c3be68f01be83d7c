package vertex

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := &Client{}
	for _, opt := range []ClientOption{
		WithMaxRetries(5),
		WithBaseDelay(500 * time.Millisecond),
		WithMaxDelay(30 * time.Second),
		WithLogger(log),
	} {
		opt(c)
	}

	assert.Equal(t, 5, c.maxRetries)
	assert.Equal(t, 500*time.Millisecond, c.baseDelay)
	assert.Equal(t, 30*time.Second, c.maxDelay)
	assert.Same(t, log, c.log)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Location: "us-central1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project ID")

	_, err = NewClient(context.Background(), Config{ProjectID: "my-project"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location")
}

func TestRetryableError(t *testing.T) {
	err := &retryableError{statusCode: 503, body: "service unavailable"}
	assert.Equal(t, "retryable API error 503: service unavailable", err.Error())

	err = &retryableError{statusCode: 502}
	assert.Equal(t, "retryable API error 502: ", err.Error())
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "text-embedding-004", DefaultModel)
	assert.Equal(t, 768, DefaultDimension)
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 100, DefaultBatchSize)
	assert.Equal(t, 30*time.Second, DefaultTimeout)
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{
		baseDelay: 100 * time.Millisecond,
		maxDelay:  10 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.calculateBackoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	c := &Client{
		baseDelay: time.Second,
		maxDelay:  5 * time.Second,
	}
	assert.Equal(t, 5*time.Second, c.calculateBackoff(10))
}
