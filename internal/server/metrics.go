// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ingestRequestsTotal counts completed POST /ingest requests, partitioned
	// by outcome: "ok", "invalid", "transient", "provider", or "error".
	ingestRequestsTotal *prometheus.CounterVec

	// ingestDurationSeconds records the wall-clock duration of successful
	// ingests, dominated by the embedding calls.
	ingestDurationSeconds prometheus.Histogram

	// ingestChunksStored counts the total chunks written across all ingests.
	ingestChunksStored prometheus.Counter

	// searchRequestsTotal counts completed GET /search requests by outcome.
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records the latency of successful searches,
	// including the query embedding call.
	searchDurationSeconds prometheus.Histogram

	// briefRequestsTotal counts completed POST /api/briefs requests by outcome.
	briefRequestsTotal *prometheus.CounterVec

	// briefDurationSeconds records the wall-clock duration of successful brief
	// generations from retrieval to final model token.
	briefDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefbase",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of /ingest requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "briefbase",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful document ingests.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		ingestChunksStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "briefbase",
			Subsystem: "ingest",
			Name:      "chunks_stored_total",
			Help:      "Total number of chunks written across all ingests.",
		}),

		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefbase",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "briefbase",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of successful search requests, including query embedding.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		briefRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefbase",
			Subsystem: "brief",
			Name:      "requests_total",
			Help:      "Total number of /api/briefs requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		briefDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "briefbase",
			Subsystem: "brief",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful brief generations.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefbase",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "briefbase",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps a handler with per-endpoint request counting and latency
// observation. name is the logical handler label, not the URL path.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
