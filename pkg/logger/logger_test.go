package logger

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeAttr(t *testing.T) {
	attr := Scope("ingest")
	assert.Equal(t, "scope", attr.Key)
	assert.Equal(t, "ingest", attr.Value.String())
}

func TestErrorAttr(t *testing.T) {
	err := errors.New("boom")
	attr := Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.Nil(t, Error(nil).Value.Any())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewLoggerHonoursLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelWarn))
	assert.False(t, log.Enabled(nil, slog.LevelInfo))

	t.Setenv("LOG_LEVEL", "debug")
	log = NewLogger()
	assert.True(t, log.Enabled(nil, slog.LevelDebug))
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelInfo))
	assert.False(t, log.Enabled(nil, slog.LevelDebug))
}

func TestNewLoggerProduction(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GO_ENV", "production")
	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelInfo))
}
