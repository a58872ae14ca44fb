package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"ragsync/internal/contextutil"
)

// QdrantIndex implements VectorIndex using Qdrant.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex creates a Qdrant-backed index for one collection. urlStr is
// the HTTP endpoint ("http://host:port"); the gRPC port is derived from it.
func NewQdrantIndex(urlStr, collection string) (*QdrantIndex, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}

	// gRPC listens one port above HTTP.
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantIndex{client: client, collection: collection}, nil
}

// EnsureCollection creates the collection with cosine distance if missing and
// validates the stored dimension if it already exists.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		logger.InfoContext(ctx, "collection created", "collection", s.collection, "dim", dim)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection vector config is invalid")
	}
	if int(params.Size) != dim {
		return fmt.Errorf("collection has dimension %d, expected %d: %w", params.Size, dim, ErrDimensionMismatch)
	}
	return nil
}

// Upsert inserts entries keyed by their explicit numeric ids.
func (s *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, entry := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(entry.ID)),
			Vectors: qdrant.NewVectors(entry.Vector...),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Delete removes entries by id.
func (s *QdrantIndex) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDNum(uint64(id)))
	}

	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Nearest queries the collection and converts Qdrant's cosine similarity
// scores back to cosine distances so that 0 means identical and smaller is
// closer.
func (s *QdrantIndex) Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	lim := uint64(limit)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(scored))
	for _, point := range scored {
		if point.Id == nil {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			ID:       int64(point.Id.GetNum()),
			Distance: 1 - point.Score,
		})
	}
	return neighbors, nil
}
