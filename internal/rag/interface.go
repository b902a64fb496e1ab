// Package rag defines the contracts of the retrieval-augmented generation
// core: the embedding capability, the chunk store, and the retriever that
// combines them. Concrete implementations (SQLite, Qdrant, provider HTTP
// adapters) satisfy these interfaces so the rest of the application never
// depends on a specific backend.
package rag

import (
	"context"
)

// Document is the unit of ingested knowledge.
type Document struct {
	// ID is the caller-supplied stable identifier for this document.
	ID string

	// Title is the optional display name.
	Title string

	// URL is the optional source locator.
	URL string

	// RawText is the full original text content.
	RawText string
}

// StoredChunk is a chunk as persisted in a store: the text slice plus its
// embedding and position metadata.
type StoredChunk struct {
	// DocID is the owning document. A chunk belongs to exactly one document.
	DocID string

	// Index is the zero-based ordinal position within the document.
	Index int

	// Start is the character offset of the chunk start in the document text.
	Start int

	// End is the character offset one past the chunk end.
	End int

	// Content is the literal substring RawText[Start:End].
	Content string

	// Embedding is the fixed-length vector for this chunk. Every chunk in a
	// store shares the same dimensionality.
	Embedding []float32
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	// DocID identifies the document the chunk belongs to.
	DocID string `json:"doc_id"`

	// ChunkIndex is the chunk's ordinal position within its document.
	ChunkIndex int `json:"chunk_index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Score is the cosine similarity against the query, in [-1, 1].
	Score float64 `json:"score"`
}

// IngestResult reports the outcome of a document ingest.
type IngestResult struct {
	// DocID is the document that was ingested.
	DocID string `json:"doc_id"`

	// ChunksStored is the number of chunks persisted for this generation.
	ChunksStored int `json:"chunks_stored"`
}

// Embedder converts text into dense vector embeddings. The returned slice is
// parallel to the input: embeddings[i] is the vector for texts[i], and every
// vector has the same length. Implementations must be safe for concurrent
// use and must return an error rather than partial or zero vectors.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists documents and their chunk embeddings and answers
// similarity queries over them. Implementations must be safe for concurrent
// use; concurrent ingests of the same doc ID must be serialized internally
// so readers never observe a partially replaced chunk set.
type ChunkStore interface {
	// UpsertDocument atomically replaces the stored chunk set for doc.ID with
	// chunks. Previously stored chunks for the document are removed in the
	// same transaction so stale chunks never survive a re-ingest. Chunks with
	// an embedding length that conflicts with the collection's established
	// dimensionality are rejected with ErrDimensionMismatch.
	UpsertDocument(ctx context.Context, doc Document, chunks []StoredChunk) error

	// GetChunksByDoc returns all chunks for a document ordered by chunk
	// index. Returns ErrDocumentNotFound when the document has no chunks.
	GetChunksByDoc(ctx context.Context, docID string) ([]StoredChunk, error)

	// Search returns the topK stored chunks most similar to the query
	// embedding, ranked per Rank. An empty store yields an empty slice.
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)

	// DeleteDocument removes a document and all its chunks. Deleting an
	// unknown doc ID is not an error.
	DeleteDocument(ctx context.Context, docID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is the high-level read path: embed the query text, then rank
// stored chunks against it. Implementations must be safe for concurrent use.
type Retriever interface {
	// Retrieve returns the topK most relevant chunks for the query text.
	Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error)
}
