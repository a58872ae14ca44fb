// Package chunker splits document text into bounded, overlapping segments
// suitable for embedding and indexing.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMaxChars is the packing limit for a single chunk.
	DefaultMaxChars = 3500
	// DefaultOverlapChars is the number of trailing runes of the previous
	// chunk carried into the next one to preserve cross-chunk context.
	DefaultOverlapChars = 500
)

var sectionBoundary = regexp.MustCompile(`\n{2,}`)

// Chunk is an immutable slice of a source document prepared for embedding.
// Re-chunking a changed document supersedes chunks; it never mutates them.
type Chunk struct {
	// SourceID is stable across runs as long as section boundaries don't
	// shift: "{documentID}::chunk_{index}", zero-based.
	SourceID string
	Content  string
	Metadata Metadata
}

// Metadata describes where a chunk came from. It is persisted as JSON next to
// the chunk content and decoded on retrieval, so the field set is versioned by
// this struct rather than by free-form maps.
type Metadata struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	ChunkIndex    int    `json:"chunk_index"`
	CharCount     int    `json:"char_count"`
}

// Options control packing and overlap. Zero values select the defaults.
type Options struct {
	MaxChars     int
	OverlapChars int
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.OverlapChars <= 0 {
		o.OverlapChars = DefaultOverlapChars
	}
	return o
}

// Split packs blank-line-separated sections of text into chunks of at most
// opts.MaxChars characters, then prefixes every chunk after the first with the
// trailing opts.OverlapChars runes of the previous pre-overlap chunk.
//
// A single section longer than MaxChars is emitted whole; sections are never
// split internally. Whitespace-only input yields no chunks.
func Split(text, title, documentID string, opts Options) []Chunk {
	opts = opts.withDefaults()

	var packed []string
	var current string
	for _, section := range sectionBoundary.Split(text, -1) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		if len(current)+len(section) > opts.MaxChars {
			if current != "" {
				packed = append(packed, current)
			}
			current = section
			continue
		}
		if current == "" {
			current = section
		} else {
			current += "\n\n" + section
		}
	}
	if current != "" {
		packed = append(packed, current)
	}

	chunks := make([]Chunk, 0, len(packed))
	for i, content := range packed {
		if i > 0 {
			content = tail(packed[i-1], opts.OverlapChars) + "\n\n" + content
		}
		chunks = append(chunks, Chunk{
			SourceID: fmt.Sprintf("%s::chunk_%d", documentID, i),
			Content:  content,
			Metadata: Metadata{
				DocumentID:    documentID,
				DocumentTitle: title,
				ChunkIndex:    i,
				CharCount:     len(content),
			},
		})
	}
	return chunks
}

// tail returns the last n runes of s. Counting runes rather than bytes keeps
// the overlap from splitting a multi-byte character.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
