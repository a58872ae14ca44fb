package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"ragsync/internal/contextutil"
)

// HealthHandler reports whether the daemon's storage is reachable.
type HealthHandler struct {
	db      *sql.DB
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db, timeout: 5 * time.Second}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Check pings storage and reports overall status.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	logger := contextutil.LoggerFromContext(ctx)

	checks := map[string]string{"storage": "ok"}
	status, httpStatus := "healthy", http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "storage ping failed", "error", err)
		checks["storage"] = "error"
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}
