// Package store provides the SQLite-backed retrieval store: documents and
// their chunk embeddings are persisted locally so the service needs no
// external vector database. Similarity search is a full scan of the stored
// vectors ranked with rag.Rank — exact, deterministic, and fast enough for
// the collection sizes a content team produces.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/briefbase/briefbase-go/internal/rag"
)

// SQLiteStore is a rag.ChunkStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// mu guards docLocks.
	mu sync.Mutex

	// docLocks serializes ingests per doc ID so two concurrent re-ingests of
	// the same document cannot interleave their chunk sets. Ingests of
	// different documents proceed independently.
	docLocks map[string]*sync.Mutex
}

// DefaultDBPath returns the default path for the retrieval database.
// It resolves to ~/.briefbase/index.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".briefbase")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode lets searches proceed concurrently with an ingest; readers see
	// the pre-commit snapshot until the replacement transaction lands.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, docLocks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    doc_id      TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    raw_text    TEXT NOT NULL,
    ingested_at INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id     TEXT PRIMARY KEY,  -- doc_id '#' chunk_index
    doc_id       TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    content      TEXT NOT NULL,
    embedding    BLOB NOT NULL,     -- little-endian float32 vector
    dim          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (doc_id, chunk_index);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// lockDoc returns the mutex serializing writes for docID, creating it on
// first use. Entries are never evicted — doc IDs are a small, stable set.
func (s *SQLiteStore) lockDoc(docID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.docLocks[docID]
	if !ok {
		l = &sync.Mutex{}
		s.docLocks[docID] = l
	}
	return l
}

// UpsertDocument atomically replaces the stored chunk set for doc.ID.
// The delete of the previous generation and the insert of the new chunks
// share one transaction, so a reader sees either the fully old or fully new
// chunk set. On context cancellation the transaction rolls back and the old
// generation stays visible.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc rag.Document, chunks []rag.StoredChunk) error {
	if doc.ID == "" {
		return fmt.Errorf("store: doc_id must not be empty: %w", rag.ErrInvalidConfig)
	}
	for i, c := range chunks {
		if len(chunks) > 0 && len(c.Embedding) != len(chunks[0].Embedding) {
			return fmt.Errorf("store: chunk %d has %d dimensions, chunk 0 has %d: %w",
				i, len(c.Embedding), len(chunks[0].Embedding), rag.ErrDimensionMismatch)
		}
	}

	l := s.lockDoc(doc.ID)
	l.Lock()
	defer l.Unlock()

	if len(chunks) > 0 {
		// The collection dimension is fixed by whatever other documents hold.
		// Chunks of the document being replaced do not count — a full replace
		// of the only document may legitimately change providers.
		var dim int
		err := s.db.QueryRowContext(ctx,
			`SELECT dim FROM chunks WHERE doc_id <> ? LIMIT 1`, doc.ID).Scan(&dim)
		switch {
		case err == sql.ErrNoRows:
			// First document with chunks — establishes the dimension.
		case err != nil:
			return fmt.Errorf("store: dimension lookup: %w", err)
		case dim != len(chunks[0].Embedding):
			return fmt.Errorf("store: new chunks have %d dimensions, collection has %d: %w",
				len(chunks[0].Embedding), dim, rag.ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (doc_id, title, url, raw_text, ingested_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
		   title = excluded.title, url = excluded.url,
		   raw_text = excluded.raw_text, ingested_at = excluded.ingested_at`,
		doc.ID, doc.Title, doc.URL, doc.RawText, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: upsert document %q: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("store: delete old chunks for %q: %w", doc.ID, err)
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (chunk_id, doc_id, chunk_index, start_offset, end_offset, content, embedding, dim)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fmt.Sprintf("%s#%d", c.DocID, c.Index), c.DocID, c.Index, c.Start, c.End,
			c.Content, encodeVector(c.Embedding), len(c.Embedding)); err != nil {
			return fmt.Errorf("store: insert chunk %s/%d: %w", c.DocID, c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit upsert for %q: %w", doc.ID, err)
	}
	return nil
}

// GetChunksByDoc returns all chunks for a document ordered by chunk index.
func (s *SQLiteStore) GetChunksByDoc(ctx context.Context, docID string) ([]rag.StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, chunk_index, start_offset, end_offset, content, embedding
		 FROM chunks WHERE doc_id = ? ORDER BY chunk_index ASC`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: chunks by doc: %w", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("store: no chunks for %q: %w", docID, rag.ErrDocumentNotFound)
	}
	return chunks, nil
}

// Search loads every stored chunk and ranks it against the query embedding.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, topK int) ([]rag.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, chunk_index, start_offset, end_offset, content, embedding
		 FROM chunks ORDER BY doc_id ASC, chunk_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: load candidates: %w", err)
	}
	defer rows.Close()

	candidates, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	return rag.Rank(query, candidates, topK)
}

// DeleteDocument removes a document and all its chunks. Unknown doc IDs are
// a no-op.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	l := s.lockDoc(docID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("store: delete chunks for %q: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("store: delete document %q: %w", docID, err)
	}
	return tx.Commit()
}

// GetDocument returns the stored metadata and raw text for docID.
func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (rag.Document, error) {
	var doc rag.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_id, title, url, raw_text FROM documents WHERE doc_id = ?`, docID).
		Scan(&doc.ID, &doc.Title, &doc.URL, &doc.RawText)
	if err == sql.ErrNoRows {
		return rag.Document{}, fmt.Errorf("store: document %q: %w", docID, rag.ErrDocumentNotFound)
	}
	if err != nil {
		return rag.Document{}, fmt.Errorf("store: get document %q: %w", docID, err)
	}
	return doc, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping satisfies the server's readiness probe interface.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name identifies the store in readiness responses.
func (s *SQLiteStore) Name() string { return "sqlite" }

// scanChunks reads chunk rows into StoredChunks, decoding embedding blobs.
func scanChunks(rows *sql.Rows) ([]rag.StoredChunk, error) {
	var chunks []rag.StoredChunk
	for rows.Next() {
		var c rag.StoredChunk
		var blob []byte
		if err := rows.Scan(&c.DocID, &c.Index, &c.Start, &c.End, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: chunk rows: %w", err)
	}
	return chunks, nil
}

// encodeVector serializes a float32 vector as a little-endian byte blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a little-endian byte blob into a float32 vector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
