// Package corpus provides the document source feeding the sync pipeline: a
// lazy, finite, restartable sequence of workspace pages fetched through
// cursor-based pagination.
package corpus

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source.go -package=mocks ragsync/internal/corpus Source

import "context"

// Document is one workspace page with its full flattened text.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Source produces the complete corpus. Implementations must be restartable:
// calling ListAll again yields the current state of the corpus from the start.
type Source interface {
	// ListAll follows pagination cursors until the source reports no more
	// pages and returns every document. A failure partway through returns an
	// error and no documents; the caller retries the whole listing.
	ListAll(ctx context.Context) ([]Document, error)
}
