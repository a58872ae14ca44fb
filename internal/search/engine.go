// Package search answers queries by fusing lexical and semantic rankings
// over the embedded corpus.
package search

import (
	"context"
	"fmt"
	"sort"

	"ragsync/internal/chunker"
	"ragsync/internal/contextutil"
	"ragsync/internal/storage"
	"ragsync/internal/vectorstore"
)

// candidateLimit caps how many candidates each stage retrieves.
const candidateLimit = 100

// Options control result weighting and count. Zero values select defaults.
type Options struct {
	KeywordWeight  float64
	SemanticWeight float64
	TopK           int
}

func (o Options) withDefaults() Options {
	if o.KeywordWeight == 0 && o.SemanticWeight == 0 {
		o.KeywordWeight = 0.5
		o.SemanticWeight = 0.5
	}
	if o.TopK <= 0 {
		o.TopK = 10
	}
	return o
}

// Result is one ranked hit. BM25Score and SemanticScore are the normalized
// per-stage scores in [0, 1]; a stage that did not return the candidate
// contributes 0.
type Result struct {
	ID            int64            `json:"id"`
	Content       string           `json:"content"`
	SourceType    string           `json:"source_type"`
	SourceID      string           `json:"source_id"`
	Metadata      chunker.Metadata `json:"metadata"`
	BM25Score     float64          `json:"bm25_score"`
	SemanticScore float64          `json:"semantic_score"`
	FinalScore    float64          `json:"final_score"`
}

// Engine performs hybrid retrieval over the lexical and vector indexes.
type Engine struct {
	index   *storage.IndexRepo
	vectors vectorstore.VectorIndex
	dim     int
}

// NewEngine creates a search engine. dim is the fixed dimension of the
// vector index; query vectors are validated against it.
func NewEngine(index *storage.IndexRepo, vectors vectorstore.VectorIndex, dim int) *Engine {
	return &Engine{index: index, vectors: vectors, dim: dim}
}

// Search runs both stages, normalizes their score spaces, fuses them, and
// returns at most TopK results ordered by descending final score. A lexical
// stage with no matches degrades to zero lexical contribution; a query
// vector of the wrong dimension is an error.
func (e *Engine) Search(ctx context.Context, query string, queryVector []float32, opts Options) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	opts = opts.withDefaults()

	if len(queryVector) != e.dim {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(queryVector), e.dim, vectorstore.ErrDimensionMismatch)
	}

	bm25Raw := e.index.LexicalSearch(ctx, query, candidateLimit)
	bm25Norm := normalizeBM25(bm25Raw)

	neighbors, err := e.vectors.Nearest(ctx, queryVector, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	distances := make(map[int64]float64, len(neighbors))
	for _, n := range neighbors {
		distances[n.ID] = float64(n.Distance)
	}
	semNorm := normalizeDistances(distances)

	ids := unionIDs(bm25Norm, semNorm)
	if len(ids) == 0 {
		logger.DebugContext(ctx, "no candidates from either stage", "query", query)
		return []Result{}, nil
	}

	metas, err := e.index.GetMetaByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate candidates: %w", err)
	}

	fused := fuse(ids, bm25Norm, semNorm, opts.KeywordWeight, opts.SemanticWeight)

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		meta, ok := metas[id]
		if !ok {
			// A vector whose metadata transaction never committed. It stays
			// invisible to callers until the next ingest replaces it.
			logger.DebugContext(ctx, "dropping candidate without metadata", "id", id)
			continue
		}
		results = append(results, Result{
			ID:            id,
			Content:       meta.Content,
			SourceType:    meta.SourceType,
			SourceID:      meta.SourceID,
			Metadata:      meta.Metadata,
			BM25Score:     bm25Norm[id],
			SemanticScore: semNorm[id],
			FinalScore:    fused[id],
		})
	}

	// Ties order by ascending id, which is insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	logger.DebugContext(ctx, "hybrid search completed",
		"query", query,
		"lexical_candidates", len(bm25Raw),
		"semantic_candidates", len(neighbors),
		"results", len(results),
	)
	return results, nil
}

// fuse computes the weighted linear combination of the two normalized score
// spaces for each candidate. A candidate missing from a stage contributes
// 0 for that stage, not an imputed value.
func fuse(ids []int64, bm25Norm, semNorm map[int64]float64, keywordWeight, semanticWeight float64) map[int64]float64 {
	final := make(map[int64]float64, len(ids))
	for _, id := range ids {
		final[id] = keywordWeight*bm25Norm[id] + semanticWeight*semNorm[id]
	}
	return final
}

// unionIDs merges candidate ids from both stages in ascending order.
func unionIDs(bm25, semantic map[int64]float64) []int64 {
	seen := make(map[int64]struct{}, len(bm25)+len(semantic))
	for id := range bm25 {
		seen[id] = struct{}{}
	}
	for id := range semantic {
		seen[id] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
