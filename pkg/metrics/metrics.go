// Package metrics provides the Prometheus registry, the /metrics handler and
// HTTP request instrumentation for the marketplace API.
// Component metrics are defined in their respective packages (cache,
// client, ratelimit) to keep those packages self-contained.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the marketplace.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_http_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_http_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route"})
)

// Handler exposes the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count and latency for next under route.
// route should be the registered pattern, not the raw path, to keep label
// cardinality bounded.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(m.Code)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(m.Duration.Seconds())
	})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - marketplace_cache_hits_total (Counter): Requests served from a live entry
//   - marketplace_cache_misses_total (Counter): GET requests that ran the handler
//   - marketplace_cache_not_modified_total{path} (Counter): 304 answers on hit/miss path
//   - marketplace_cache_entries (Gauge): Stored entries, stale included
//   - marketplace_cache_invalidations_total{reason} (Counter): Entries removed by prefix/flush
//   - marketplace_cache_errors_total{operation} (Counter): Encode/send failures
//
// Rate Limit Metrics (pkg/ratelimit):
//   - marketplace_rate_limit_rejections_total (Counter): Requests answered with 429
//   - marketplace_rate_limit_errors_total (Counter): Backend errors (request allowed)
//
// Request Metrics (pkg/metrics):
//   - marketplace_http_requests_total{route, status} (Counter)
//   - marketplace_http_request_duration_seconds{route} (Histogram)
//
// Upstream Catalog Metrics (pkg/client):
//   - marketplace_catalog_requests_total{endpoint, status} (Counter)
//   - marketplace_catalog_request_duration_seconds{endpoint} (Histogram)
//   - marketplace_catalog_errors_total{class} (Counter)
//   - marketplace_catalog_retries_total{error_class} (Counter)
//   - marketplace_catalog_retry_backoff_seconds{error_class} (Histogram)
//   - marketplace_catalog_retry_exhausted_total{error_class} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(marketplace_cache_hits_total[5m])) /
//   (sum(rate(marketplace_cache_hits_total[5m])) + sum(rate(marketplace_cache_misses_total[5m])))
//
//   # 304 Share of Cached Routes
//   sum(rate(marketplace_cache_not_modified_total[5m])) /
//   sum(rate(marketplace_http_requests_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(marketplace_http_request_duration_seconds_bucket[5m]))
