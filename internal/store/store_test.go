package store

import (
	"context"
	"errors"
	"testing"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// chunk builds a StoredChunk with a short content string and embedding.
func chunk(docID string, index int, content string, embedding []float32) rag.StoredChunk {
	return rag.StoredChunk{
		DocID:     docID,
		Index:     index,
		Start:     index * 100,
		End:       index*100 + len(content),
		Content:   content,
		Embedding: embedding,
	}
}

func Test_Store_UpsertAndGetChunks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", Title: "launch post", RawText: "ab"}
	chunks := []rag.StoredChunk{
		chunk("doc-1", 0, "alpha", []float32{1, 0, 0}),
		chunk("doc-1", 1, "beta", []float32{0, 1, 0}),
	}
	if err := s.UpsertDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetChunksByDoc(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("chunks not ordered by index: %+v", got)
	}
	if got[0].Content != "alpha" {
		t.Errorf("chunk 0 content: want alpha, got %q", got[0].Content)
	}
	if len(got[0].Embedding) != 3 || got[0].Embedding[0] != 1 {
		t.Errorf("embedding round-trip failed: %v", got[0].Embedding)
	}
}

func Test_Store_ReingestReplacesChunks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", RawText: "v1"}
	first := []rag.StoredChunk{
		chunk("doc-1", 0, "old a", []float32{1, 0}),
		chunk("doc-1", 1, "old b", []float32{0, 1}),
		chunk("doc-1", 2, "old c", []float32{1, 1}),
	}
	if err := s.UpsertDocument(ctx, doc, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Re-ingest with fewer chunks — the extra old chunk must not survive.
	doc.RawText = "v2"
	second := []rag.StoredChunk{
		chunk("doc-1", 0, "new a", []float32{0.5, 0.5}),
	}
	if err := s.UpsertDocument(ctx, doc, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetChunksByDoc(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 chunk after replace, got %d", len(got))
	}
	if got[0].Content != "new a" {
		t.Errorf("want replaced content, got %q", got[0].Content)
	}
}

func Test_Store_ReingestIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", RawText: "same"}
	chunks := []rag.StoredChunk{chunk("doc-1", 0, "same", []float32{1, 2})}

	for range 3 {
		if err := s.UpsertDocument(ctx, doc, chunks); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := s.GetChunksByDoc(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("repeated ingest must not duplicate chunks: got %d", len(got))
	}
}

func Test_Store_DimensionMismatchAcrossDocs(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDocument(ctx, rag.Document{ID: "doc-1", RawText: "x"},
		[]rag.StoredChunk{chunk("doc-1", 0, "x", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	err := s.UpsertDocument(ctx, rag.Document{ID: "doc-2", RawText: "y"},
		[]rag.StoredChunk{chunk("doc-2", 0, "y", []float32{1, 0})})
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func Test_Store_DimensionChangeAllowedForSoleDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", RawText: "x"}
	if err := s.UpsertDocument(ctx, doc,
		[]rag.StoredChunk{chunk("doc-1", 0, "x", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Replacing the only document may switch embedding dimensions — there is
	// no other document left to be inconsistent with.
	if err := s.UpsertDocument(ctx, doc,
		[]rag.StoredChunk{chunk("doc-1", 0, "x", []float32{1, 0})}); err != nil {
		t.Errorf("sole-document dimension change: %v", err)
	}
}

func Test_Store_InternalDimensionMismatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	err := s.UpsertDocument(ctx, rag.Document{ID: "doc-1", RawText: "x"},
		[]rag.StoredChunk{
			chunk("doc-1", 0, "a", []float32{1, 0}),
			chunk("doc-1", 1, "b", []float32{1, 0, 0}),
		})
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch for inconsistent batch, got %v", err)
	}
}

func Test_Store_GetChunksUnknownDoc(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.GetChunksByDoc(context.Background(), "ghost")
	if !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("want ErrDocumentNotFound, got %v", err)
	}
}

func Test_Store_EmptyDocRemovesChunks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", RawText: "content"}
	if err := s.UpsertDocument(ctx, doc,
		[]rag.StoredChunk{chunk("doc-1", 0, "content", []float32{1})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Re-ingesting with no chunks (empty text) clears the old generation.
	doc.RawText = ""
	if err := s.UpsertDocument(ctx, doc, nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}

	_, err := s.GetChunksByDoc(ctx, "doc-1")
	if !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("want ErrDocumentNotFound after empty re-ingest, got %v", err)
	}
}

func Test_Store_Search(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDocument(ctx, rag.Document{ID: "doc-1", RawText: "x"},
		[]rag.StoredChunk{
			chunk("doc-1", 0, "north", []float32{1, 0}),
			chunk("doc-1", 1, "east", []float32{0, 1}),
		}); err != nil {
		t.Fatalf("upsert doc-1: %v", err)
	}
	if err := s.UpsertDocument(ctx, rag.Document{ID: "doc-2", RawText: "y"},
		[]rag.StoredChunk{
			chunk("doc-2", 0, "northish", []float32{0.9, 0.1}),
		}); err != nil {
		t.Fatalf("upsert doc-2: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].DocID != "doc-1" || results[0].ChunkIndex != 0 {
		t.Errorf("best match: want doc-1/0, got %s/%d", results[0].DocID, results[0].ChunkIndex)
	}
	if results[1].DocID != "doc-2" {
		t.Errorf("second match: want doc-2, got %s", results[1].DocID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted by score: %v", results)
	}
}

func Test_Store_SearchEmptyIndex(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want empty results, got %d", len(results))
	}
}

func Test_Store_DeleteDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDocument(ctx, rag.Document{ID: "doc-1", RawText: "x"},
		[]rag.StoredChunk{chunk("doc-1", 0, "x", []float32{1})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("want ErrDocumentNotFound after delete, got %v", err)
	}

	// Deleting an unknown doc is a no-op.
	if err := s.DeleteDocument(ctx, "ghost"); err != nil {
		t.Errorf("delete unknown doc: %v", err)
	}
}

func Test_Store_GetDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "doc-1", Title: "T", URL: "https://example.com", RawText: "body"}
	if err := s.UpsertDocument(ctx, doc, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got != doc {
		t.Errorf("document round-trip: want %+v, got %+v", doc, got)
	}
}

func Test_Store_VectorRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, -1, 0.5, 3.1415927, -2.5e-3}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("length: want %d, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: want %v, got %v", i, in[i], out[i])
		}
	}
}
