package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks requests answered from a live entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks GET requests that had to run the handler
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// NotModifiedResponses tracks 304 answers by the path that produced them
	NotModifiedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses served by the cache",
		},
		[]string{"path"}, // "hit", "miss"
	)

	// CacheEntries tracks the number of stored entries, live or stale
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_cache_entries",
			Help: "Current number of entries held by the response cache",
		},
	)

	// Invalidations tracks entries removed by prefix invalidation or flush
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_cache_invalidations_total",
			Help: "Total number of cache entries removed",
		},
		[]string{"reason"}, // "prefix", "flush"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_cache_errors_total",
			Help: "Total number of response cache errors",
		},
		[]string{"operation"}, // "encode", "send"
	)
)
