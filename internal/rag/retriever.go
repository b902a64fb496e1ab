package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a ChunkStore. It embeds the query at retrieval time and
// delegates similarity ranking to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store ranks stored chunks against the query vector.
	store ChunkStore
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and ChunkStore.
func NewRetriever(embedder Embedder, store ChunkStore) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	return &DefaultRetriever{embedder: embedder, store: store}, nil
}

// Retrieve embeds the query and returns the topK most relevant chunks.
// A blank query or topK < 1 fails with ErrInvalidConfig; an empty store
// yields an empty slice.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("rag: query must not be empty: %w", ErrInvalidConfig)
	}
	if topK < 1 {
		return nil, fmt.Errorf("rag: top_k must be >= 1, got %d: %w", topK, ErrInvalidConfig)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one query", len(embeddings))
	}

	results, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: similarity search failed: %w", err)
	}

	return results, nil
}
