package search

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"ragsync/internal/chunker"
	"ragsync/internal/storage"
	"ragsync/internal/vectorstore"
	vectormocks "ragsync/internal/vectorstore/mocks"
)

const testDim = 3

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

// seedChunk inserts one embedded chunk and returns its embedding id.
func seedChunk(t *testing.T, index *storage.IndexRepo, sourceID, content string) int64 {
	t.Helper()

	id, err := index.ApplyChunk(context.Background(), storage.ChunkWrite{
		SourceID:    sourceID,
		SourceType:  storage.SourceTypeWorkspacePage,
		Content:     content,
		ContentHash: "hash-" + sourceID,
		Metadata:    chunker.Metadata{DocumentID: "doc-1", ChunkIndex: 0, CharCount: len(content)},
		IsNew:       true,
	}, func(context.Context, int64, []int64) error { return nil })
	if err != nil {
		t.Fatalf("ApplyChunk(%s) error = %v", sourceID, err)
	}
	return id
}

func TestEngine_Search_DimensionMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewEngine(storage.NewIndexRepo(newTestDB(t)), vectormocks.NewMockVectorIndex(ctrl), testDim)

	_, err := engine.Search(context.Background(), "query", []float32{0.1, 0.2}, Options{})
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEngine_Search_HybridRanking(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	index := storage.NewIndexRepo(db)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(index, vectors, testDim)
	ctx := context.Background()

	id1 := seedChunk(t, index, "a::chunk_0", "kubernetes cluster networking")
	id2 := seedChunk(t, index, "b::chunk_0", "kubernetes storage volumes")
	id3 := seedChunk(t, index, "c::chunk_0", "gardening in spring")

	// Distances 0.2, 1.0, 1.8 normalize to 1.0, 0.5, 0.0.
	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return([]vectorstore.Neighbor{
			{ID: id1, Distance: 0.2},
			{ID: id2, Distance: 1.0},
			{ID: id3, Distance: 1.8},
		}, nil)

	results, err := engine.Search(ctx, "kubernetes", []float32{0.1, 0.2, 0.3}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// id1 leads on both stages. id3 matched nothing lexically, so its only
	// contribution is semantic, and that normalized to 0.
	if results[0].ID != id1 {
		t.Errorf("top result = id %d, want %d", results[0].ID, id1)
	}
	if results[len(results)-1].ID != id3 {
		t.Errorf("last result = id %d, want %d", results[len(results)-1].ID, id3)
	}
	if results[len(results)-1].BM25Score != 0 {
		t.Errorf("lexical non-match BM25Score = %v, want 0", results[len(results)-1].BM25Score)
	}

	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results out of order at %d: %v > %v", i, results[i].FinalScore, results[i-1].FinalScore)
		}
	}

	// Results are hydrated from the metadata rows.
	if results[0].Content != "kubernetes cluster networking" || results[0].SourceID != "a::chunk_0" {
		t.Errorf("top result not hydrated: %+v", results[0])
	}
	if results[0].Metadata.DocumentID != "doc-1" {
		t.Errorf("metadata not hydrated: %+v", results[0].Metadata)
	}
}

func TestEngine_Search_LexicalMissDegradesToSemantic(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	index := storage.NewIndexRepo(db)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(index, vectors, testDim)

	id1 := seedChunk(t, index, "a::chunk_0", "some indexed content")

	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return([]vectorstore.Neighbor{{ID: id1, Distance: 0.4}}, nil)

	// The query matches nothing lexically, including the malformed-query path.
	results, err := engine.Search(context.Background(), "AND NOT (", []float32{0.1, 0.2, 0.3}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].BM25Score != 0 {
		t.Errorf("BM25Score = %v, want 0", results[0].BM25Score)
	}
	if results[0].SemanticScore != 1.0 {
		t.Errorf("SemanticScore = %v, want 1.0 (single candidate)", results[0].SemanticScore)
	}
	if !almostEqual(results[0].FinalScore, 0.5) {
		t.Errorf("FinalScore = %v, want 0.5", results[0].FinalScore)
	}
}

func TestEngine_Search_TopKTruncation(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	index := storage.NewIndexRepo(db)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(index, vectors, testDim)

	var neighbors []vectorstore.Neighbor
	for i := 0; i < 5; i++ {
		id := seedChunk(t, index, string(rune('a'+i))+"::chunk_0", "filler content")
		neighbors = append(neighbors, vectorstore.Neighbor{ID: id, Distance: float32(i) * 0.3})
	}

	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return(neighbors, nil)

	results, err := engine.Search(context.Background(), "zzznomatch", []float32{0.1, 0.2, 0.3}, Options{TopK: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestEngine_Search_TiesBreakByAscendingID(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	index := storage.NewIndexRepo(db)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(index, vectors, testDim)

	id1 := seedChunk(t, index, "a::chunk_0", "tied content")
	id2 := seedChunk(t, index, "b::chunk_0", "tied content")

	// Identical distances tie both candidates at the same final score.
	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return([]vectorstore.Neighbor{
			{ID: id2, Distance: 0.6},
			{ID: id1, Distance: 0.6},
		}, nil)

	results, err := engine.Search(context.Background(), "zzznomatch", []float32{0.1, 0.2, 0.3}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != id1 || results[1].ID != id2 {
		t.Errorf("tie not broken by ascending id: got [%d, %d]", results[0].ID, results[1].ID)
	}
}

func TestEngine_Search_DropsOrphanVectors(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	index := storage.NewIndexRepo(db)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(index, vectors, testDim)

	id1 := seedChunk(t, index, "a::chunk_0", "real content")

	// id 999 has no metadata row, as after a rolled-back paired write.
	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return([]vectorstore.Neighbor{
			{ID: id1, Distance: 0.4},
			{ID: 999, Distance: 0.1},
		}, nil)

	results, err := engine.Search(context.Background(), "zzznomatch", []float32{0.1, 0.2, 0.3}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != id1 {
		t.Errorf("orphan vector not dropped: %+v", results)
	}
}

func TestEngine_Search_NoCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(storage.NewIndexRepo(db), vectors, testDim)

	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return(nil, nil)

	results, err := engine.Search(context.Background(), "anything", []float32{0.1, 0.2, 0.3}, Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestEngine_Search_VectorStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newTestDB(t)
	vectors := vectormocks.NewMockVectorIndex(ctrl)
	engine := NewEngine(storage.NewIndexRepo(db), vectors, testDim)

	vectors.EXPECT().
		Nearest(gomock.Any(), gomock.Any(), candidateLimit).
		Return(nil, errors.New("qdrant unavailable"))

	if _, err := engine.Search(context.Background(), "anything", []float32{0.1, 0.2, 0.3}, Options{}); err == nil {
		t.Fatal("Search() error = nil, want semantic stage failure")
	}
}
