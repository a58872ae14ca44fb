package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragsync/internal/chunker"
	"ragsync/internal/config"
	"ragsync/internal/corpus"
	"ragsync/internal/http"
	"ragsync/internal/ingest"
	"ragsync/internal/llm"
	"ragsync/internal/search"
	"ragsync/internal/storage"
	"ragsync/internal/syncer"
	"ragsync/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vectors, err := vectorstore.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectors.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "dim", cfg.EmbeddingDim)

	embedder := llm.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)

	recordRepo := storage.NewChunkRecordRepo(db)
	indexRepo := storage.NewIndexRepo(db)
	eventRepo := storage.NewEventRepo(db)

	pipeline := ingest.NewPipeline(recordRepo, indexRepo, embedder, vectors, chunker.Options{})
	source := corpus.NewWorkspaceClient(cfg.WorkspaceAPIURL, cfg.WorkspaceToken)
	orchestrator := syncer.New(source, pipeline, cfg.SyncInterval)

	engine := search.NewEngine(indexRepo, vectors, cfg.EmbeddingDim)
	router := http.NewRouter(&http.Deps{
		Engine:   engine,
		Embedder: embedder,
		Events:   eventRepo,
		DB:       db,
	})

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		orchestrator.Run(ctx)
	}()

	server := &nethttp.Server{Addr: ":" + cfg.APIPort, Handler: router}
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	<-syncDone
	slog.Info("Shutdown complete")
}
