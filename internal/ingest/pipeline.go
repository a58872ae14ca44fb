// Package ingest runs documents through chunking, change detection, and the
// paired embedding write.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"ragsync/internal/chunker"
	"ragsync/internal/contextutil"
	"ragsync/internal/corpus"
	"ragsync/internal/llm"
	"ragsync/internal/storage"
	"ragsync/internal/vectorstore"
)

// Stats counts the outcome of ingesting one or more documents.
type Stats struct {
	ChunksTotal     int
	ChunksNew       int
	ChunksUpdated   int
	ChunksUnchanged int
	ChunksFailed    int
}

// Add accumulates another batch's stats into s.
func (s *Stats) Add(other Stats) {
	s.ChunksTotal += other.ChunksTotal
	s.ChunksNew += other.ChunksNew
	s.ChunksUpdated += other.ChunksUpdated
	s.ChunksUnchanged += other.ChunksUnchanged
	s.ChunksFailed += other.ChunksFailed
}

// Pipeline ingests documents: split into chunks, hash-compare against the
// canonical records, embed what is new or changed, and commit each chunk's
// record, metadata, lexical row, and vector as one unit.
type Pipeline struct {
	records  storage.ChunkRecordStore
	index    *storage.IndexRepo
	embedder llm.Embedder
	vectors  vectorstore.VectorIndex
	opts     chunker.Options

	// mu serializes the hash-check-then-mutate sequence so two overlapping
	// ingestion passes can neither drop a change nor double-insert a pair.
	mu sync.Mutex
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(
	records storage.ChunkRecordStore,
	index *storage.IndexRepo,
	embedder llm.Embedder,
	vectors vectorstore.VectorIndex,
	opts chunker.Options,
) *Pipeline {
	return &Pipeline{
		records:  records,
		index:    index,
		embedder: embedder,
		vectors:  vectors,
		opts:     opts,
	}
}

// candidate is a chunk scheduled for embedding after change detection.
type candidate struct {
	chunk chunker.Chunk
	hash  string
	isNew bool
}

// IndexDocument ingests one document. An embedding failure aborts the whole
// document (nothing written, retried next cycle); a storage failure on one
// chunk skips that chunk only, leaving its record untouched so a future cycle
// retries it cleanly.
func (p *Pipeline) IndexDocument(ctx context.Context, doc corpus.Document) (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)

	chunks := chunker.Split(doc.Text, doc.Title, doc.ID, p.opts)
	stats := Stats{ChunksTotal: len(chunks)}
	if len(chunks) == 0 {
		logger.DebugContext(ctx, "document produced no chunks", "document_id", doc.ID)
		return stats, nil
	}

	candidates, err := p.detectChanges(ctx, chunks)
	if err != nil {
		return stats, err
	}
	stats.ChunksUnchanged = len(chunks) - len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.chunk.Content
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return stats, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
	}
	if len(vectors) != len(candidates) {
		return stats, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(candidates), len(vectors))
	}

	for i, c := range candidates {
		vector := vectors[i]
		id, err := p.index.ApplyChunk(ctx, storage.ChunkWrite{
			SourceID:    c.chunk.SourceID,
			SourceType:  storage.SourceTypeWorkspacePage,
			Content:     c.chunk.Content,
			ContentHash: c.hash,
			Metadata:    c.chunk.Metadata,
			IsNew:       c.isNew,
		}, func(ctx context.Context, newID int64, staleIDs []int64) error {
			if err := p.vectors.Delete(ctx, staleIDs); err != nil {
				return err
			}
			return p.vectors.Upsert(ctx, []vectorstore.Entry{{ID: newID, Vector: vector}})
		})
		if err != nil {
			stats.ChunksFailed++
			logger.ErrorContext(ctx, "failed to store chunk",
				"source_id", c.chunk.SourceID, "error", err)
			continue
		}

		if c.isNew {
			stats.ChunksNew++
		} else {
			stats.ChunksUpdated++
		}
		logger.DebugContext(ctx, "stored chunk",
			"source_id", c.chunk.SourceID, "embedding_id", id, "new", c.isNew)
	}

	return stats, nil
}

// detectChanges hashes each chunk and compares it against the canonical
// record. First-sight chunks and content changes are scheduled for
// embedding; hash matches are skipped.
func (p *Pipeline) detectChanges(ctx context.Context, chunks []chunker.Chunk) ([]candidate, error) {
	var candidates []candidate
	for _, chunk := range chunks {
		hash := ContentHash(chunk.Content)

		record, err := p.records.GetBySourceID(ctx, chunk.SourceID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			candidates = append(candidates, candidate{chunk: chunk, hash: hash, isNew: true})
		case err != nil:
			return nil, fmt.Errorf("failed to look up chunk record %s: %w", chunk.SourceID, err)
		case record.ContentHash == hash:
			// Unchanged, skip.
		default:
			candidates = append(candidates, candidate{chunk: chunk, hash: hash, isNew: false})
		}
	}
	return candidates, nil
}

// ContentHash returns the hex sha256 digest of the chunk text's UTF-8 bytes.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
