// Package cache provides an in-process HTTP response cache for JSON APIs.
//
// The response cache implements URL-keyed memoization with the following
// features:
//
// - Per-route TTL chosen when the middleware is installed
// - ETag (If-None-Match) support on both the hit and the miss path
// - Lazy expiry: entries are checked on read and never swept
// - Literal prefix invalidation wired in front of mutating routes
// - Prometheus metrics for observability
// - Deterministic content hashes (SHA-256, first 16 hex chars)
//
// # Basic Usage
//
//	responses := cache.New()
//
//	// Cache GET /api/orders for 30 seconds
//	mux.Handle("GET /api/orders", responses.Middleware(30*time.Second)(listOrders))
//
//	// Drop cached order and cart reads before creating an order
//	mux.Handle("POST /api/orders", responses.Invalidate("/api/orders", "/api/cart")(createOrder))
//
// # Sending Responses
//
// Only payloads sent through SendJSON are cached. Anything a handler writes
// directly to the ResponseWriter passes through untouched and leaves the
// store alone.
//
//	func listOrders(w http.ResponseWriter, r *http.Request) {
//		orders, err := store.ListOrders(r.Context())
//		if err != nil {
//			_ = cache.SendJSON(w, http.StatusInternalServerError, errorBody)
//			return
//		}
//		_ = cache.SendJSON(w, http.StatusOK, orders)
//	}
//
// # Response Headers
//
//   - ETag: the content hash of the body, unquoted
//   - X-Cache: HIT when served from the store, MISS when freshly stored
//
// A request whose If-None-Match equals the current hash gets 304 with an
// empty body.
//
// # Metrics
//
//   - marketplace_cache_hits_total - Cache hits
//   - marketplace_cache_misses_total - Cache misses
//   - marketplace_cache_not_modified_total{path} - 304 answers ("hit", "miss")
//   - marketplace_cache_entries - Stored entries, stale included
//   - marketplace_cache_invalidations_total{reason} - Removed entries
//   - marketplace_cache_errors_total{operation} - Encode/send errors
//
// # Scope
//
// Keys are the request path and raw query only. The cache is not
// identity-aware: two users asking for the same URL share one entry.
// Expired entries stay in memory until the key is requested again,
// invalidated or flushed, so a workload with unbounded key churn grows
// the store without bound.
package cache
