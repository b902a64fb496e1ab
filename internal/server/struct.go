package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/briefbase/briefbase-go/internal/briefs"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on mutating routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, a new
	// registry is created and served at GET /metrics.
	Registry *prometheus.Registry
	// DefaultTopK is the result count used by GET /search when the request
	// omits top_k. Defaults to 5 if zero.
	DefaultTopK int
}

// ingester is the interface handleIngest calls to run the ingestion pipeline.
// *ingest.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	// Ingest chunks, embeds, and stores one document, replacing any previous
	// version under the same doc ID.
	Ingest(ctx context.Context, doc rag.Document) (rag.IngestResult, error)
}

// briefer is the interface handleBrief calls to generate a research brief.
// *briefs.Generator satisfies it; tests inject a fake.
type briefer interface {
	// Generate retrieves evidence for topic and drafts a cited brief.
	Generate(ctx context.Context, topic string) (*briefs.Brief, error)
}

// Server is the HTTP server that exposes the ingestion and retrieval API.
type Server struct {
	// ingester runs the chunk → embed → store pipeline for POST /ingest.
	ingester ingester
	// retriever answers GET /search queries.
	retriever rag.Retriever
	// briefer generates research briefs for POST /api/briefs. May be nil,
	// in which case the endpoint returns 503.
	briefer briefer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /ingest.
type ingestRequest struct {
	// DocID is the stable identifier for the document. Required.
	DocID string `json:"doc_id"`
	// Title is an optional human-readable document title.
	Title string `json:"title,omitempty"`
	// URL is the optional source URL the document was fetched from.
	URL string `json:"url,omitempty"`
	// Text is the raw document text to chunk and embed.
	Text string `json:"raw"`
}

// ingestResponse is the JSON response for POST /ingest.
type ingestResponse struct {
	// DocID echoes the ingested document identifier.
	DocID string `json:"doc_id"`
	// ChunksStored is the number of chunks written for this document.
	ChunksStored int `json:"chunks_stored"`
}

// searchResponse is the JSON response for GET /search.
type searchResponse struct {
	// Query echoes the search query.
	Query string `json:"query"`
	// TopK is the requested result count.
	TopK int `json:"top_k"`
	// Results holds the ranked matches, best first. Always present, possibly empty.
	Results []rag.SearchResult `json:"results"`
}

// briefRequest is the JSON body for POST /api/briefs.
type briefRequest struct {
	// Topic is the subject to research. Required.
	Topic string `json:"topic"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
