// Package metrics provides Prometheus instrumentation for the API service.
//
// Standard metrics exposed automatically by prometheus/client_golang:
//   - go_goroutines, go_gc_duration_seconds, etc. (Go runtime)
//   - process_cpu_seconds_total, process_open_fds, etc. (process)
//
// Service-specific metrics registered here:
//
//	versecast_http_requests_total          — counter: HTTP requests by method/path/status
//	versecast_http_request_duration_secs   — histogram: HTTP latency by method/path
//	versecast_access_denied_total          — counter: 401/403 rejections by reason
//	versecast_signed_urls_issued_total     — counter: delivery URLs signed, by media type
//	versecast_playlist_merges_total        — counter: multi-chapter playlist merges
//	versecast_upstream_errors_total        — counter: media-provider failures by status
//	versecast_group_cache_events_total     — counter: access-group cache hits/misses
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Counters ──────────────────────────────────────────────────────────────────

// HTTPRequests counts HTTP requests by method, path, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "versecast_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"service", "method", "path", "status"})

// AccessDenied counts requests rejected by access control.
var AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "versecast_access_denied_total",
	Help: "Requests rejected by access control, by reason.",
}, []string{"reason"})

// SignedURLs counts delivery URLs issued, by media type.
var SignedURLs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "versecast_signed_urls_issued_total",
	Help: "Signed delivery URLs issued.",
}, []string{"type"})

// PlaylistMerges counts multi-chapter playlist merge operations.
var PlaylistMerges = promauto.NewCounter(prometheus.CounterOpts{
	Name: "versecast_playlist_merges_total",
	Help: "Multi-chapter HLS playlist merges performed.",
})

// UpstreamErrors counts media-provider fetch failures by HTTP status.
var UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "versecast_upstream_errors_total",
	Help: "Media provider fetch failures.",
}, []string{"status"})

// GroupCacheEvents counts access-group cache hits and misses.
var GroupCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "versecast_group_cache_events_total",
	Help: "Access-group cache lookups by outcome.",
}, []string{"outcome"})

// ── Histograms ────────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "versecast_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
}, []string{"service", "method", "path"})

// MergeDuration tracks playlist merge latency, upstream fetches included.
var MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "versecast_playlist_merge_duration_seconds",
	Help:    "Time to fetch and merge a multi-chapter playlist.",
	Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
})

// ── Handler ───────────────────────────────────────────────────────────────────

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ── Middleware ────────────────────────────────────────────────────────────────

// Middleware wraps an HTTP handler to record request counts and latency.
// path should be a templated path (e.g. "/bibles/{id}/chapter") not the raw
// URL, to keep label cardinality bounded.
func Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		path := sanitizePath(r.URL.Path)
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(service, r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(service, r.Method, path).Observe(dur)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sanitizePath keeps path labels short; fileset and bible IDs are bounded
// vocabularies so raw segments stay low-cardinality.
func sanitizePath(path string) string {
	if len(path) > 64 {
		return path[:64] + "..."
	}
	return path
}

// ── Init (registry-scoped) ────────────────────────────────────────────────────

// Init registers all service metrics with the given prometheus.Registerer.
// This is provided for testing — pass prometheus.NewRegistry() to get an
// isolated registry. In production all metrics are registered via promauto
// to prometheus.DefaultRegisterer at package init time.
func Init(reg prometheus.Registerer) {
	httpReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "versecast_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"service", "method", "path", "status"})

	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "versecast_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "path"})

	accessDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "versecast_access_denied_total",
		Help: "Requests rejected by access control, by reason.",
	}, []string{"reason"})

	signedURLs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "versecast_signed_urls_issued_total",
		Help: "Signed delivery URLs issued.",
	}, []string{"type"})

	playlistMerges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "versecast_playlist_merges_total",
		Help: "Multi-chapter HLS playlist merges performed.",
	})

	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "versecast_upstream_errors_total",
		Help: "Media provider fetch failures.",
	}, []string{"status"})

	groupCacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "versecast_group_cache_events_total",
		Help: "Access-group cache lookups by outcome.",
	}, []string{"outcome"})

	mergeDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "versecast_playlist_merge_duration_seconds",
		Help:    "Time to fetch and merge a multi-chapter playlist.",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	reg.MustRegister(
		httpReqs,
		httpDur,
		accessDenied,
		signedURLs,
		playlistMerges,
		upstreamErrors,
		groupCacheEvents,
		mergeDur,
	)
}
