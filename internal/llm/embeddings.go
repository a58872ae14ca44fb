// Package llm wraps the embedding model behind a small batch interface.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks ragsync/internal/llm Embedder

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"ragsync/internal/vectorstore"
)

// Embedder turns a batch of texts into same-length, same-order vectors of a
// fixed dimension. For a fixed model version, identical input yields
// identical vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder is an Embedder backed by an OpenAI-compatible embeddings
// endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder against the given base URL. dim is
// the expected vector size; every returned embedding is validated against it.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dim int) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dim:    dim,
	}
}

// EmbedTexts embeds all texts in one request.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input batch")
	}

	slog.DebugContext(ctx, "embedding batch", "model", e.model, "texts", len(texts))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != e.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d: %w",
				i, len(data.Embedding), e.dim, vectorstore.ErrDimensionMismatch)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}
