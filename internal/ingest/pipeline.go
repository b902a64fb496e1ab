// Package ingest implements the document ingestion pipeline: chunk the raw
// text, embed every chunk, and atomically replace the document's stored chunk
// set. Each ingest is one logical transaction — when any stage fails, the
// previously stored generation stays visible and nothing partial is written.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/briefbase/briefbase-go/internal/chunker"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to 100 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each URL fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the chunk → embed → store flow for documents.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.ChunkStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for URL ingestion.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// Invalid chunking parameters (overlap >= size) are rejected up front with
// rag.ErrInvalidConfig rather than silently corrected.
func NewPipeline(embedder rag.Embedder, store rag.ChunkStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 100
	}
	if err := (chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}).Validate(); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "briefbase/1.0 (document ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest runs the full pipeline for one document and reports how many chunks
// were stored. A document with empty raw text is not an error: its previous
// chunks (if any) are removed and zero chunks are stored.
//
// Embedding failures abort the ingest before anything is written, so a
// partially embedded chunk set can never reach the store.
func (p *Pipeline) Ingest(ctx context.Context, doc rag.Document) (rag.IngestResult, error) {
	if doc.ID == "" {
		return rag.IngestResult{}, fmt.Errorf("ingest: doc_id must not be empty: %w", rag.ErrInvalidConfig)
	}

	chunks, err := chunker.Split(doc.RawText, chunker.Config{
		Size:    p.cfg.ChunkSize,
		Overlap: p.cfg.ChunkOverlap,
	})
	if err != nil {
		return rag.IngestResult{}, err
	}

	stored := make([]rag.StoredChunk, 0, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return rag.IngestResult{}, fmt.Errorf("ingest: embedding failed for %q: %w", doc.ID, err)
		}
		if len(embeddings) != len(chunks) {
			return rag.IngestResult{}, fmt.Errorf("ingest: embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
		}

		for i, c := range chunks {
			if len(embeddings[i]) == 0 {
				return rag.IngestResult{}, fmt.Errorf("ingest: empty embedding for chunk %d of %q", i, doc.ID)
			}
			stored = append(stored, rag.StoredChunk{
				DocID:     doc.ID,
				Index:     c.Index,
				Start:     c.Start,
				End:       c.End,
				Content:   c.Content,
				Embedding: embeddings[i],
			})
		}
	}

	// The embed call is the long suspension point; bail out before the store
	// transaction when the caller has already given up.
	if err := ctx.Err(); err != nil {
		return rag.IngestResult{}, fmt.Errorf("ingest: cancelled before store for %q: %w", doc.ID, err)
	}

	if err := p.store.UpsertDocument(ctx, doc, stored); err != nil {
		return rag.IngestResult{}, fmt.Errorf("ingest: store failed for %q: %w", doc.ID, err)
	}

	return rag.IngestResult{DocID: doc.ID, ChunksStored: len(stored)}, nil
}

// IngestURL fetches the raw text behind url and ingests it under docID.
// Used by the CLI to index published pages without an intermediate file.
func (p *Pipeline) IngestURL(ctx context.Context, docID, title, url string) (rag.IngestResult, error) {
	content, err := p.fetch(ctx, url)
	if err != nil {
		return rag.IngestResult{}, fmt.Errorf("ingest: fetch failed for %s: %w", url, err)
	}
	return p.Ingest(ctx, rag.Document{ID: docID, Title: title, URL: url, RawText: content})
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}
