package cache

import (
	"net/http"
)

// KeyFromRequest derives the cache key for r: the path plus raw query
// string exactly as the client sent it (e.g. "/api/products/listed?x=1").
//
// Headers, including credentials, are not part of the key. Routes that
// serve per-user data share one entry across all users.
func KeyFromRequest(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
