package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// KeyFunc identifies the client a request is counted against.
type KeyFunc func(r *http.Request) string

// Option configures Middleware.
type Option func(*options)

type options struct {
	key KeyFunc
}

// WithTrustProxy keys clients on the first X-Forwarded-For hop instead of
// the socket address. Only enable it behind a proxy that overwrites the
// header.
func WithTrustProxy(trust bool) Option {
	return func(o *options) {
		if trust {
			o.key = ForwardedClientKey
		}
	}
}

// Middleware rejects clients that exceed limiter's window with 429.
//
// Every response carries RateLimit-Limit, RateLimit-Remaining and
// RateLimit-Reset (seconds). Limiter errors are logged and the request is
// let through. Clients are keyed by ClientKey unless WithTrustProxy is set.
func Middleware(limiter Limiter, logger zerolog.Logger, opts ...Option) func(http.Handler) http.Handler {
	o := options{key: ClientKey}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := o.key(r)

			window, err := limiter.Allow(r.Context(), client)
			if err != nil {
				rateLimitErrorsTotal.Inc()
				logger.Warn().Err(err).Str("client", client).Msg("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			reset := resetSeconds(window.TimeUntilReset(time.Now()))
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(window.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(window.Remaining()))
			h.Set("RateLimit-Reset", strconv.Itoa(reset))

			if !window.Allowed() {
				rateLimitRejectionsTotal.Inc()
				logger.Warn().
					Str("client", client).
					Str("path", r.URL.Path).
					Int("count", window.Count).
					Msg("Request rejected by rate limiter")

				h.Set("Retry-After", strconv.Itoa(reset))
				h.Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests, please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ForwardedClientKey identifies the caller by the first X-Forwarded-For
// hop, falling back to ClientKey when the header is absent or blank.
func ForwardedClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return ClientKey(r)
}

// ClientKey identifies the caller by the remote host of the connection.
// Request headers are ignored.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func resetSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
