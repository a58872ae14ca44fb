// Package vectorstore abstracts the nearest-neighbor index over chunk
// embeddings. Entries are keyed by the embedding metadata row id, the join
// key shared with the sqlite side.
package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks ragsync/internal/vectorstore VectorIndex

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's dimension does not match
// the index's fixed dimension. Vectors are never silently truncated or padded.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is a vector keyed by its embedding metadata row id.
type Entry struct {
	ID     int64
	Vector []float32
}

// Neighbor is one nearest-neighbor hit. Distance is cosine distance in
// [0, 2] where 0 means identical.
type Neighbor struct {
	ID       int64
	Distance float32
}

// VectorIndex is the nearest-neighbor primitive.
type VectorIndex interface {
	// EnsureCollection creates the collection with the given dimension if it
	// is missing, and fails if it exists with a different dimension.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert inserts entries keyed by their explicit ids.
	Upsert(ctx context.Context, entries []Entry) error
	// Delete removes entries by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []int64) error
	// Nearest returns up to limit neighbors ordered by ascending cosine
	// distance.
	Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error)
}
