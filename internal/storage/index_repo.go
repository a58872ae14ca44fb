package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"ragsync/internal/chunker"
	"ragsync/internal/contextutil"
)

// ChunkWrite is one chunk's full ingestion write: the canonical record
// mutation, the new embedding metadata row, and (for first-sight chunks) the
// queued change event.
type ChunkWrite struct {
	SourceID    string
	SourceType  string
	Content     string
	ContentHash string
	Metadata    chunker.Metadata
	// IsNew marks a chunk seen for the first time. New chunks insert a
	// chunk record and queue a change event; updates rewrite the record in
	// place and queue nothing.
	IsNew bool
}

// VectorSync applies the vector-index side of a paired write: delete the
// superseded entries, then insert the new one under newID. It runs inside
// the open SQLite transaction; returning an error rolls the whole write back.
type VectorSync func(ctx context.Context, newID int64, staleIDs []int64) error

// IndexRepo owns the embeddings_meta table, its FTS5 mirror, and the paired
// write that keeps both in step with the vector index.
type IndexRepo struct {
	db *sql.DB
}

// NewIndexRepo creates a new IndexRepo.
func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

// ApplyChunk commits one chunk's ingestion as a single unit and returns the
// new embedding metadata id. Inside one transaction it upserts the chunk
// record, prunes superseded meta+FTS rows for the source_id, inserts the new
// meta+FTS pair, queues the change event for new chunks, and calls sync to
// mirror the vector index. Any failure, including sync's, rolls everything
// back, so a meta row is never visible without its vector and a chunk record
// is never marked current for an embedding that was not stored.
func (r *IndexRepo) ApplyChunk(ctx context.Context, w ChunkWrite, sync VectorSync) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if w.IsNew {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunk_records (source_id, content_hash, last_content) VALUES (?, ?, ?)",
			w.SourceID, w.ContentHash, w.Content,
		); err != nil {
			return 0, fmt.Errorf("failed to insert chunk record: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO change_events (source_id, diff, change_score) VALUES (?, ?, ?)",
			w.SourceID, w.Content, 1.0,
		); err != nil {
			return 0, fmt.Errorf("failed to queue change event: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE chunk_records SET content_hash = ?, last_content = ?, updated_at = CURRENT_TIMESTAMP WHERE source_id = ?",
			w.ContentHash, w.Content, w.SourceID,
		); err != nil {
			return 0, fmt.Errorf("failed to update chunk record: %w", err)
		}
	}

	staleIDs, err := metaIDsBySource(ctx, tx, w.SourceID)
	if err != nil {
		return 0, err
	}
	for _, staleID := range staleIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings_meta WHERE id = ?", staleID); err != nil {
			return 0, fmt.Errorf("failed to prune superseded meta row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings_fts WHERE rowid = ?", staleID); err != nil {
			return 0, fmt.Errorf("failed to prune superseded fts row: %w", err)
		}
	}

	metadata, err := json.Marshal(w.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO embeddings_meta (source_type, source_id, content, metadata) VALUES (?, ?, ?, ?)",
		w.SourceType, w.SourceID, w.Content, string(metadata),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert embedding meta: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding meta id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO embeddings_fts (rowid, content) VALUES (?, ?)",
		id, w.Content,
	); err != nil {
		return 0, fmt.Errorf("failed to insert fts row: %w", err)
	}

	if sync != nil {
		if err := sync(ctx, id, staleIDs); err != nil {
			return 0, fmt.Errorf("failed to sync vector index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunk write: %w", err)
	}
	return id, nil
}

// LexicalSearch runs the query against the FTS5 index and returns raw BM25
// scores keyed by embedding id. FTS5 BM25 scores are negative, more negative
// meaning a better match. Malformed queries and zero matches both degrade to
// an empty result, never an error.
func (r *IndexRepo) LexicalSearch(ctx context.Context, query string, limit int) map[int64]float64 {
	logger := contextutil.LoggerFromContext(ctx)

	// Double quotes are the only character FTS5 lets us escape inside a
	// string; everything else that trips the query parser is handled by the
	// degrade-to-empty path below.
	safe := strings.ReplaceAll(query, `"`, `""`)

	rows, err := r.db.QueryContext(ctx,
		"SELECT rowid, bm25(embeddings_fts) FROM embeddings_fts WHERE embeddings_fts MATCH ? LIMIT ?",
		safe, limit,
	)
	if err != nil {
		logger.DebugContext(ctx, "lexical query rejected", "query", query, "error", err)
		return map[int64]float64{}
	}
	defer func() {
		_ = rows.Close()
	}()

	scores := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			logger.DebugContext(ctx, "lexical row scan failed", "error", err)
			return map[int64]float64{}
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		logger.DebugContext(ctx, "lexical query iteration failed", "error", err)
		return map[int64]float64{}
	}
	return scores
}

// GetMetaByIDs fetches embedding metadata for the given ids in one query.
// Missing ids are simply absent from the result.
func (r *IndexRepo) GetMetaByIDs(ctx context.Context, ids []int64) (map[int64]EmbeddingMeta, error) {
	if len(ids) == 0 {
		return map[int64]EmbeddingMeta{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, source_type, source_id, content, metadata, created_at FROM embeddings_meta WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding meta: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	metas := make(map[int64]EmbeddingMeta, len(ids))
	for rows.Next() {
		var meta EmbeddingMeta
		var metadata sql.NullString
		if err := rows.Scan(&meta.ID, &meta.SourceType, &meta.SourceID, &meta.Content, &metadata, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding meta: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &meta.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for id %d: %w", meta.ID, err)
			}
		}
		metas[meta.ID] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return metas, nil
}

// ListMetaIDsBySource returns the live embedding ids for a source_id.
func (r *IndexRepo) ListMetaIDsBySource(ctx context.Context, sourceID string) ([]int64, error) {
	return metaIDsBySourceDB(ctx, r.db, sourceID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func metaIDsBySource(ctx context.Context, tx *sql.Tx, sourceID string) ([]int64, error) {
	return metaIDsBySourceDB(ctx, tx, sourceID)
}

func metaIDsBySourceDB(ctx context.Context, q querier, sourceID string) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM embeddings_meta WHERE source_id = ? ORDER BY id", sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan meta id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
