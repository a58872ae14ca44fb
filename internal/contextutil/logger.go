// Package contextutil carries a structured logger through context so that
// request handlers and sync cycles log with their own attributes attached.
package contextutil

import (
	"context"
	"log/slog"
)

type contextKey struct{}

var loggerKey contextKey

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger stored by WithLogger, falling back to
// slog.Default when the context carries none.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
