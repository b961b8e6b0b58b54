// Package retrieval turns a user question into a ranked set of documents:
// query embedding, significant-term extraction, and blended reranking of
// hybrid search results.
package retrieval

import (
	"context"
	"fmt"

	"github.com/docmindhq/docmind/llm"
)

// Embedder turns query text into fixed-dimension vectors via an LLM
// provider. It caches nothing itself.
type Embedder struct {
	provider llm.Provider
	dim      int
}

// NewEmbedder creates an Embedder that validates every returned vector
// against the expected dimension.
func NewEmbedder(provider llm.Provider, dim int) *Embedder {
	return &Embedder{provider: provider, dim: dim}
}

// Dim returns the expected embedding dimension.
func (e *Embedder) Dim() int {
	return e.dim
}

// EmbedQuery returns the embedding vector for a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	if len(vecs[0]) != e.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vecs[0]), e.dim)
	}
	return vecs[0], nil
}

// EmbedBatch returns embedding vectors for several texts at once.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != e.dim {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dim)
		}
	}
	return vecs, nil
}
