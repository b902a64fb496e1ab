package rag

import (
	"fmt"
	"math"
	"sort"
)

// Cosine returns the cosine similarity between a and b:
// dot(a,b) / (norm(a) * norm(b)). If either vector has zero norm the
// similarity is defined as 0 to avoid division by zero. Both vectors must
// have the same length; callers are expected to have checked dimensions.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every candidate against the query embedding and returns the
// topK most similar as SearchResults, sorted by descending score. Ties are
// broken by ascending chunk index, then ascending doc ID, so repeated
// queries against unchanged data always return identical output.
//
// Rank is a stateless computation over the candidates it is given — a full
// scan per query is the baseline; stores may layer an index on top as long
// as the ranked output is identical.
//
// An empty candidate pool yields an empty slice and no error. topK must be
// >= 1 (ErrInvalidConfig otherwise). A query whose length differs from the
// candidates' embedding length fails with ErrDimensionMismatch.
func Rank(query []float32, candidates []StoredChunk, topK int) ([]SearchResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("rag: top_k must be >= 1, got %d: %w", topK, ErrInvalidConfig)
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			return nil, fmt.Errorf("rag: query has %d dimensions, stored chunk %s/%d has %d: %w",
				len(query), c.DocID, c.Index, len(c.Embedding), ErrDimensionMismatch)
		}
		results = append(results, SearchResult{
			DocID:      c.DocID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Score:      Cosine(query, c.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].DocID < results[j].DocID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
