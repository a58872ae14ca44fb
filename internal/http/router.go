// Package http exposes the two collaborator surfaces of the core, hybrid
// search and the change-event queue, plus a health endpoint.
package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ragsync/internal/handlers"
	"ragsync/internal/llm"
	"ragsync/internal/search"
	"ragsync/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine   *search.Engine
	Embedder llm.Embedder
	Events   storage.ChangeEventStore
	DB       *sql.DB
}

// NewRouter creates the HTTP router.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	searchHandler := handlers.NewSearchHandler(deps.Engine, deps.Embedder)
	changesHandler := handlers.NewChangesHandler(deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", searchHandler.Search)
		r.Get("/changes", changesHandler.List)
		r.Delete("/changes/{id}", changesHandler.Consume)
		r.Get("/health", healthHandler.Check)
	})

	return r
}
