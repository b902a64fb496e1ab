// Package server implements the HTTP server that exposes the briefbase
// ingestion and retrieval API. The server is started by the `briefbase serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/briefbase/briefbase-go/internal/logging"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// New constructs a Server from the provided pipeline, retriever, and config.
// briefer may be nil when no chat model is configured; POST /api/briefs then
// returns 503.
func New(ing ingester, retriever rag.Retriever, br briefer, cfg *Config) (*Server, error) {
	if ing == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full ingest: embedding a large document
		// can take minutes against a slow local model.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = 5
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		ingester:  ing,
		retriever: retriever,
		briefer:   br,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: BRIEFBASE_API_KEY not set — authentication disabled")
	}
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /ingest", protected("ingest", s.handleIngest))
	mux.Handle("GET /search", rl.middleware(s.instrument("search", http.HandlerFunc(s.handleSearch))))
	mux.Handle("POST /api/briefs", protected("briefs", s.handleBrief))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleIngest handles POST /ingest. It runs the full chunk → embed → store
// pipeline for the submitted document and reports how many chunks were stored.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DocID) == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	start := time.Now()
	result, err := s.ingester.Ingest(r.Context(), rag.Document{
		ID:      req.DocID,
		Title:   req.Title,
		URL:     req.URL,
		RawText: req.Text,
	})
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Error("ingest failed",
			slog.String("doc_id", req.DocID),
			slog.Any("error", err),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.metrics.ingestRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.ingestChunksStored.Add(float64(result.ChunksStored))

	log.Info("document ingested",
		slog.String("doc_id", result.DocID),
		slog.Int("chunks_stored", result.ChunksStored),
	)

	writeJSON(w, http.StatusOK, ingestResponse{
		DocID:        result.DocID,
		ChunksStored: result.ChunksStored,
	})
}

// handleSearch handles GET /search?q=<query>&top_k=<n>. An empty result set is
// a normal response, not an error.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	topK := s.cfg.DefaultTopK
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	start := time.Now()
	results, err := s.retriever.Retrieve(r.Context(), query, topK)
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Error("search failed",
			slog.String("query", query),
			slog.Any("error", err),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.searchDurationSeconds.Observe(time.Since(start).Seconds())

	if results == nil {
		results = []rag.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		TopK:    topK,
		Results: results,
	})
}

// handleBrief handles POST /api/briefs. It generates a cited research brief
// for the submitted topic using the configured chat model.
func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.briefer == nil {
		writeError(w, http.StatusServiceUnavailable, "brief generation is not configured — set a chat model provider")
		return
	}

	var req briefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	start := time.Now()
	brief, err := s.briefer.Generate(r.Context(), req.Topic)
	if err != nil {
		s.metrics.briefRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Error("brief generation failed",
			slog.String("topic", req.Topic),
			slog.Any("error", err),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.metrics.briefRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.briefDurationSeconds.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, brief)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps domain errors to HTTP status codes:
//
//	invalid configuration or input  → 422 Unprocessable Entity
//	document not found              → 404 Not Found
//	transient provider failure      → 503 Service Unavailable
//	permanent provider failure      → 502 Bad Gateway
//	anything else (storage, bugs)   → 500 Internal Server Error
func statusForError(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rag.ErrDocumentNotFound):
		return http.StatusNotFound
	case rag.IsTransient(err):
		return http.StatusServiceUnavailable
	case isProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isProviderError reports whether err originated from an embedding or chat
// provider, regardless of transience.
func isProviderError(err error) bool {
	var pe *rag.ProviderError
	return errors.As(err, &pe)
}

// outcomeLabel returns the metrics outcome label for a failed operation.
func outcomeLabel(err error) string {
	switch {
	case rag.IsTransient(err):
		return "transient"
	case isProviderError(err):
		return "provider"
	case errors.Is(err, rag.ErrInvalidConfig):
		return "invalid"
	default:
		return "error"
	}
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("response encode error", slog.Any("error", err))
	}
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
