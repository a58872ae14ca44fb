package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ragsync/internal/contextutil"
	"ragsync/internal/storage"
)

// ChangesHandler exposes the change-event queue to the downstream trigger
// consumer: list what is pending, consume by id.
type ChangesHandler struct {
	events storage.ChangeEventStore
}

// NewChangesHandler creates a new ChangesHandler.
func NewChangesHandler(events storage.ChangeEventStore) *ChangesHandler {
	return &ChangesHandler{events: events}
}

// ChangeEventPayload is one pending change event.
type ChangeEventPayload struct {
	ID          int64   `json:"id"`
	SourceID    string  `json:"source_id"`
	Diff        string  `json:"diff"`
	ChangeScore float64 `json:"change_score"`
	CreatedAt   string  `json:"created_at"`
}

// List returns pending change events, oldest first.
func (h *ChangesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	events, err := h.events.ListPending(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list change events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list change events")
		return
	}

	payload := make([]ChangeEventPayload, 0, len(events))
	for _, ev := range events {
		payload = append(payload, ChangeEventPayload{
			ID:          ev.ID,
			SourceID:    ev.SourceID,
			Diff:        ev.Diff,
			ChangeScore: ev.ChangeScore,
			CreatedAt:   ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": payload})
}

// Consume deletes an event by id. Consuming an already-consumed event
// returns 404; delivery is at-most-once with no replay.
func (h *ChangesHandler) Consume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.events.MarkConsumed(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		logger.ErrorContext(ctx, "failed to consume change event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to consume change event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
