// Package logger provides slog-based structured logging for the server.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the logger via fx
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates the application logger.
// LOG_LEVEL selects the minimum level (debug, info, warn/warning, error;
// default info). When GO_ENV=production the handler emits JSON.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Scope returns a "scope" attribute used to tag log lines with the
// emitting subsystem.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns an "error" attribute for the given error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
