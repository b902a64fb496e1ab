package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// stubEmbedder returns a fixed-dimension vector per input text, or a canned
// error, and records the texts it embedded.
type stubEmbedder struct {
	dims     int
	short    int // if > 0, return this many vectors regardless of input
	err      error
	gotTexts []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.gotTexts = texts
	if s.err != nil {
		return nil, s.err
	}
	n := len(texts)
	if s.short > 0 {
		n = s.short
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, s.dims)
		out[i][0] = 1
	}
	return out, nil
}

// stubStore records the upsert it received.
type stubStore struct {
	err       error
	gotDoc    rag.Document
	gotChunks []rag.StoredChunk
	upserts   int
}

func (s *stubStore) UpsertDocument(_ context.Context, doc rag.Document, chunks []rag.StoredChunk) error {
	s.upserts++
	s.gotDoc = doc
	s.gotChunks = chunks
	return s.err
}

func (s *stubStore) GetChunksByDoc(context.Context, string) ([]rag.StoredChunk, error) {
	return nil, rag.ErrDocumentNotFound
}

func (s *stubStore) Search(context.Context, []float32, int) ([]rag.SearchResult, error) {
	return []rag.SearchResult{}, nil
}

func (s *stubStore) DeleteDocument(context.Context, string) error { return nil }

func (s *stubStore) Close() error { return nil }

func newTestPipeline(t *testing.T, emb *stubEmbedder, st *stubStore, cfg *Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(emb, st, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func Test_Pipeline_Ingest(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{dims: 4}
	st := &stubStore{}
	p := newTestPipeline(t, emb, st, &Config{ChunkSize: 400, ChunkOverlap: 50})

	doc := rag.Document{ID: "doc-1", Title: "post", RawText: strings.Repeat("x", 1000)}
	res, err := p.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if res.DocID != "doc-1" || res.ChunksStored != 3 {
		t.Errorf("result: want doc-1/3, got %+v", res)
	}
	if len(emb.gotTexts) != 3 {
		t.Errorf("embedder got %d texts, want 3", len(emb.gotTexts))
	}
	if st.gotDoc.ID != "doc-1" || len(st.gotChunks) != 3 {
		t.Fatalf("store got doc=%q with %d chunks", st.gotDoc.ID, len(st.gotChunks))
	}
	for i, c := range st.gotChunks {
		if c.Index != i || c.DocID != "doc-1" {
			t.Errorf("chunk %d: index=%d doc=%q", i, c.Index, c.DocID)
		}
		if len(c.Embedding) != 4 {
			t.Errorf("chunk %d: embedding dims %d", i, len(c.Embedding))
		}
		if c.Content != doc.RawText[c.Start:c.End] {
			t.Errorf("chunk %d: content does not match offsets", i)
		}
	}
}

func Test_Pipeline_EmptyDocID(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &stubEmbedder{dims: 2}, &stubStore{}, nil)
	_, err := p.Ingest(context.Background(), rag.Document{RawText: "text"})
	if !errors.Is(err, rag.ErrInvalidConfig) {
		t.Errorf("want ErrInvalidConfig, got %v", err)
	}
}

func Test_Pipeline_EmptyTextStoresZeroChunks(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{dims: 2}
	st := &stubStore{}
	p := newTestPipeline(t, emb, st, nil)

	res, err := p.Ingest(context.Background(), rag.Document{ID: "doc-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.ChunksStored != 0 {
		t.Errorf("want 0 chunks stored, got %d", res.ChunksStored)
	}
	// The upsert must still run so any previous generation is cleared.
	if st.upserts != 1 || len(st.gotChunks) != 0 {
		t.Errorf("want one upsert with zero chunks, got %d upserts, %d chunks", st.upserts, len(st.gotChunks))
	}
	if len(emb.gotTexts) != 0 {
		t.Errorf("embedder must not be called for empty text, got %v", emb.gotTexts)
	}
}

func Test_Pipeline_EmbedFailureAbortsBeforeStore(t *testing.T) {
	t.Parallel()

	embedErr := &rag.ProviderError{Transient: true, Err: errors.New("timeout")}
	st := &stubStore{}
	p := newTestPipeline(t, &stubEmbedder{err: embedErr}, st, nil)

	_, err := p.Ingest(context.Background(), rag.Document{ID: "doc-1", RawText: "some text"})
	if !rag.IsTransient(err) {
		t.Errorf("want wrapped transient provider error, got %v", err)
	}
	if st.upserts != 0 {
		t.Errorf("store must not be touched after embed failure, got %d upserts", st.upserts)
	}
}

func Test_Pipeline_VectorCountMismatch(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	p := newTestPipeline(t, &stubEmbedder{dims: 2, short: 1}, st, &Config{ChunkSize: 400, ChunkOverlap: 50})

	_, err := p.Ingest(context.Background(), rag.Document{ID: "doc-1", RawText: strings.Repeat("x", 1000)})
	if err == nil {
		t.Fatal("want error for vector count mismatch")
	}
	if st.upserts != 0 {
		t.Errorf("store must not be touched, got %d upserts", st.upserts)
	}
}

func Test_Pipeline_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("db locked")
	p := newTestPipeline(t, &stubEmbedder{dims: 2}, &stubStore{err: storeErr}, nil)

	_, err := p.Ingest(context.Background(), rag.Document{ID: "doc-1", RawText: "text"})
	if !errors.Is(err, storeErr) {
		t.Errorf("want wrapped store error, got %v", err)
	}
}

func Test_Pipeline_CancelledContext(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	p := newTestPipeline(t, &stubEmbedder{dims: 2}, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Ingest(ctx, rag.Document{ID: "doc-1", RawText: "text"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if st.upserts != 0 {
		t.Errorf("store must not be touched after cancellation, got %d upserts", st.upserts)
	}
}

func Test_NewPipeline_RejectsBadChunking(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: 150},
		{ChunkSize: -1, ChunkOverlap: 10},
	}
	for _, cfg := range cases {
		_, err := NewPipeline(&stubEmbedder{dims: 2}, &stubStore{}, &cfg)
		if !errors.Is(err, rag.ErrInvalidConfig) {
			t.Errorf("config %+v: want ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func Test_NewPipeline_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(nil, &stubStore{}, nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(&stubEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil store")
	}
}
