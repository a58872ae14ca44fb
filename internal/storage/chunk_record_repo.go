package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkRecordStore reads canonical chunk records for change detection.
// Mutations go through IndexRepo.ApplyChunk so that a record is only marked
// current once its embedding pair is durable.
type ChunkRecordStore interface {
	// GetBySourceID returns the record for a source_id, or ErrNotFound.
	GetBySourceID(ctx context.Context, sourceID string) (*ChunkRecord, error)
}

// ChunkRecordRepo implements ChunkRecordStore over SQLite.
type ChunkRecordRepo struct {
	db *sql.DB
}

// NewChunkRecordRepo creates a new ChunkRecordRepo.
func NewChunkRecordRepo(db *sql.DB) *ChunkRecordRepo {
	return &ChunkRecordRepo{db: db}
}

// GetBySourceID returns the record for a source_id, or ErrNotFound.
func (r *ChunkRecordRepo) GetBySourceID(ctx context.Context, sourceID string) (*ChunkRecord, error) {
	var rec ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT source_id, content_hash, last_content, updated_at FROM chunk_records WHERE source_id = ?",
		sourceID,
	).Scan(&rec.SourceID, &rec.ContentHash, &rec.LastContent, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk record: %w", err)
	}
	return &rec, nil
}
