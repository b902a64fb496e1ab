package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantPointNamespace is the UUIDv5 namespace used to derive stable point
// IDs from doc ID + chunk index, so re-ingesting a document overwrites the
// same points instead of accumulating duplicates.
var qdrantPointNamespace = uuid.MustParse("9e3be3a4-6f2c-4ad3-8f70-1c1b0c9a7e52")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements ChunkStore backed by a Qdrant collection configured
// for cosine distance. It is the alternative to the embedded SQLite store for
// deployments that already run a Qdrant cluster.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use ChunkStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// docFilter returns a Qdrant filter matching all points belonging to docID.
func docFilter(docID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("doc_id", docID)},
	}
}

// pointID derives the stable UUID for a chunk from its doc ID and index.
func pointID(docID string, index int) string {
	return uuid.NewSHA1(qdrantPointNamespace, fmt.Appendf(nil, "%s#%d", docID, index)).String()
}

// UpsertDocument replaces the chunk set for doc.ID: points of the previous
// generation are deleted by filter, then the new chunks are upserted with
// stable per-chunk UUIDs. Qdrant applies the two operations sequentially, so
// a brief window may expose the pre-delete state, never a mix of partial new
// and old points for overlapping IDs.
func (s *QdrantStore) UpsertDocument(ctx context.Context, doc Document, chunks []StoredChunk) error {
	for _, c := range chunks {
		if uint64(len(c.Embedding)) != s.cfg.VectorSize {
			return fmt.Errorf("qdrant: chunk %s/%d has %d dimensions, collection expects %d: %w",
				c.DocID, c.Index, len(c.Embedding), s.cfg.VectorSize, ErrDimensionMismatch)
		}
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(c.DocID, c.Index)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":       c.DocID,
				"chunk_index":  int64(c.Index),
				"start_offset": int64(c.Start),
				"end_offset":   int64(c.End),
				"content":      c.Content,
				"title":        doc.Title,
				"url":          doc.URL,
			}),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// GetChunksByDoc returns all chunks for a document ordered by chunk index.
func (s *QdrantStore) GetChunksByDoc(ctx context.Context, docID string) ([]StoredChunk, error) {
	limit := uint32(4096)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter:         docFilter(docID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("qdrant: no chunks for %q: %w", docID, ErrDocumentNotFound)
	}

	chunks := make([]StoredChunk, 0, len(points))
	for _, p := range points {
		c := StoredChunk{DocID: docID}
		if pl := p.Payload; pl != nil {
			if v, ok := pl["chunk_index"]; ok {
				c.Index = int(v.GetIntegerValue())
			}
			if v, ok := pl["start_offset"]; ok {
				c.Start = int(v.GetIntegerValue())
			}
			if v, ok := pl["end_offset"]; ok {
				c.End = int(v.GetIntegerValue())
			}
			if v, ok := pl["content"]; ok {
				c.Content = v.GetStringValue()
			}
		}
		if vec := p.Vectors.GetVector(); vec != nil {
			c.Embedding = vec.GetData()
		}
		chunks = append(chunks, c)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// Search performs a cosine similarity search and returns the top-k results.
// Qdrant already orders by descending score; the local re-sort applies the
// same deterministic tie-break as Rank for equal scores.
func (s *QdrantStore) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("qdrant: top_k must be >= 1, got %d: %w", topK, ErrInvalidConfig)
	}
	if uint64(len(query)) != s.cfg.VectorSize {
		return nil, fmt.Errorf("qdrant: query has %d dimensions, collection expects %d: %w",
			len(query), s.cfg.VectorSize, ErrDimensionMismatch)
	}

	limit := uint64(topK)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		r := SearchResult{Score: float64(h.Score)}
		if pl := h.Payload; pl != nil {
			if v, ok := pl["doc_id"]; ok {
				r.DocID = v.GetStringValue()
			}
			if v, ok := pl["chunk_index"]; ok {
				r.ChunkIndex = int(v.GetIntegerValue())
			}
			if v, ok := pl["content"]; ok {
				r.Content = v.GetStringValue()
			}
		}
		results = append(results, r)
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

	return results, nil
}

// DeleteDocument removes all points belonging to docID.
func (s *QdrantStore) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(docFilter(docID)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed for %q: %w", docID, err)
	}
	return nil
}

// Ping calls the Qdrant HealthCheck RPC. Used by readiness probes.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
