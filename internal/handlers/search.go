// Package handlers implements the HTTP handlers for the sync daemon.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ragsync/internal/contextutil"
	"ragsync/internal/llm"
	"ragsync/internal/search"
	"ragsync/internal/vectorstore"
)

// SearchHandler serves hybrid search queries.
type SearchHandler struct {
	engine   *search.Engine
	embedder llm.Embedder
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine *search.Engine, embedder llm.Embedder) *SearchHandler {
	return &SearchHandler{engine: engine, embedder: embedder}
}

// SearchRequest is the search request payload.
type SearchRequest struct {
	Query          string  `json:"query"`
	KeywordWeight  float64 `json:"keyword_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
	TopK           int     `json:"top_k,omitempty"`
}

// SearchResponse is the search response payload.
type SearchResponse struct {
	Results []search.Result `json:"results"`
}

// Search embeds the query and runs hybrid retrieval.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	vectors, err := h.embedder.EmbedTexts(ctx, []string{req.Query})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		writeError(w, http.StatusBadGateway, "embedding service unavailable")
		return
	}
	if len(vectors) != 1 {
		logger.ErrorContext(ctx, "unexpected embedding count", "count", len(vectors))
		writeError(w, http.StatusBadGateway, "embedding service returned no vector")
		return
	}

	results, err := h.engine.Search(ctx, req.Query, vectors[0], search.Options{
		KeywordWeight:  req.KeywordWeight,
		SemanticWeight: req.SemanticWeight,
		TopK:           req.TopK,
	})
	if err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) {
			logger.ErrorContext(ctx, "query vector dimension mismatch", "error", err)
			writeError(w, http.StatusInternalServerError, "embedding dimension mismatch")
			return
		}
		logger.ErrorContext(ctx, "search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
