package http

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"ragsync/internal/contextutil"
)

// RequestLogger tags each request with a request id and stores a scoped
// logger in the request context.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		logger := slog.Default().With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		w.Header().Set("X-Request-Id", requestID)
		ctx := contextutil.WithLogger(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
