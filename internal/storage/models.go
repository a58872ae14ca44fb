package storage

import (
	"errors"
	"time"

	"ragsync/internal/chunker"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SourceTypeWorkspacePage is the source_type recorded for chunks ingested
// from the workspace corpus.
const SourceTypeWorkspacePage = "workspace_page"

// ChunkRecord is the canonical last-seen version of a logical chunk. One row
// per source_id across time, updated in place when content changes. After any
// successful write, ContentHash is the sha256 hex digest of LastContent.
type ChunkRecord struct {
	SourceID    string
	ContentHash string
	LastContent string
	UpdatedAt   time.Time
}

// EmbeddingMeta is one embedded chunk version. Its id is the join key shared
// with the vector index entry and the FTS row.
type EmbeddingMeta struct {
	ID         int64
	SourceType string
	SourceID   string
	Content    string
	Metadata   chunker.Metadata
	CreatedAt  time.Time
}

// ChangeEvent is a queued notification that a chunk was newly ingested. It is
// consumed exactly once by the downstream trigger processor and then deleted.
type ChangeEvent struct {
	ID          int64
	SourceID    string
	Diff        string
	ChangeScore float64
	CreatedAt   time.Time
}
