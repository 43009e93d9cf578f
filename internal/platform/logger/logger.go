// Package logger provides structured logging functionality for the application.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/shelfsync/internal/config"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

// loggerKey is the context key under which a request-scoped logger is stored.
const loggerKey contextKey = iota

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level, sets it as the default logger, and returns it.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		// Invalid level falls back to info; warn via a temporary text logger
		// since the real one is not configured yet.
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	log := slog.New(handler)

	// Set as the process default so slog package functions pick it up too.
	slog.SetDefault(log)

	return log, nil
}

// WithLogger returns a new context carrying the given logger. Handlers and
// stores retrieve it with FromContext so log lines keep request attributes.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in the context, or the process
// default logger if none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}
