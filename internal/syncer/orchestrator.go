// Package syncer drives recurring full-corpus sync cycles.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"ragsync/internal/chunker"
	"ragsync/internal/contextutil"
	"ragsync/internal/corpus"
	"ragsync/internal/ingest"
)

// Ingestor is the per-document ingestion step of a cycle.
type Ingestor interface {
	IndexDocument(ctx context.Context, doc corpus.Document) (ingest.Stats, error)
}

// Orchestrator pulls the full corpus on a fixed interval and runs every
// document through the ingest pipeline. A cycle that fails partway keeps the
// chunks already committed; the next cycle re-lists the corpus from scratch,
// which is safe because ingestion is idempotent per chunk.
type Orchestrator struct {
	source   corpus.Source
	ingestor Ingestor
	interval time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// New creates an orchestrator that syncs every interval.
func New(source corpus.Source, ingestor Ingestor, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		source:   source,
		ingestor: ingestor,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run performs one cycle immediately, then schedules recurring cycles until
// ctx is cancelled. Cancellation is honored between documents, never
// mid-write: Run returns only after any in-flight cycle has finished.
func (o *Orchestrator) Run(ctx context.Context) {
	if err := o.Cycle(ctx); err != nil {
		o.logger.ErrorContext(ctx, "initial sync cycle failed", "error", err)
	}

	o.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := o.cron.AddFunc(fmt.Sprintf("@every %s", o.interval), func() {
		if ctx.Err() != nil {
			return
		}
		if err := o.Cycle(ctx); err != nil {
			o.logger.ErrorContext(ctx, "sync cycle failed", "error", err)
		}
	})
	if err != nil {
		// Only reachable with a non-positive interval, which config rejects.
		o.logger.ErrorContext(ctx, "failed to schedule sync cycles", "error", err)
		return
	}
	o.cron.Start()

	<-ctx.Done()
	<-o.cron.Stop().Done()
}

// Cycle fetches the entire corpus and ingests every document. A fetch or
// embedding failure aborts the cycle with all prior progress retained.
func (o *Orchestrator) Cycle(ctx context.Context) error {
	cycleID := uuid.New().String()
	logger := o.logger.With("cycle_id", cycleID)
	ctx = contextutil.WithLogger(ctx, logger)

	started := time.Now()
	logger.InfoContext(ctx, "sync cycle started")

	docs, err := o.source.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list corpus: %w", err)
	}

	var total ingest.Stats
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			logger.InfoContext(ctx, "sync cycle cancelled", "documents_done", total.ChunksTotal)
			return err
		}

		doc.Text = chunker.Flatten([]byte(doc.Text))
		stats, err := o.ingestor.IndexDocument(ctx, doc)
		total.Add(stats)
		if err != nil {
			return fmt.Errorf("failed to ingest document %s: %w", doc.ID, err)
		}
	}

	logger.InfoContext(ctx, "sync cycle completed",
		"documents", len(docs),
		"chunks_total", total.ChunksTotal,
		"chunks_new", total.ChunksNew,
		"chunks_updated", total.ChunksUpdated,
		"chunks_unchanged", total.ChunksUnchanged,
		"chunks_failed", total.ChunksFailed,
		"duration", time.Since(started),
	)
	return nil
}
