package cache

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderCacheStatus carries the diagnostic HIT/MISS marker
	HeaderCacheStatus = "X-Cache"

	statusHit  = "HIT"
	statusMiss = "MISS"
)

// ErrResponseCommitted is returned by SendJSON when the response status
// line has already been written.
var ErrResponseCommitted = errors.New("response already committed")

// ResponseCache memoizes JSON GET responses by request URL and answers
// conditional GETs from the stored content hash.
type ResponseCache struct {
	store  *Store
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock replaces time.Now, mainly for tests that simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for cache events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *ResponseCache) {
		c.logger = logger
	}
}

// New creates an empty response cache.
func New(opts ...Option) *ResponseCache {
	c := &ResponseCache{
		now:    time.Now,
		logger: log.With().Str("component", "response-cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = NewStore(c.now)
	return c
}

// Middleware caches JSON GET responses for ttl.
//
// A live entry is served without running next: 304 when If-None-Match
// equals its hash, otherwise the stored status and body with ETag and
// X-Cache: HIT. On a miss next runs with a writer that captures whatever
// it sends through SendJSON. Other methods pass through untouched.
func (c *ResponseCache) Middleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := KeyFromRequest(r)
			validator := r.Header.Get("If-None-Match")
			span := trace.SpanFromContext(r.Context())

			entry, err := c.store.Get(key)
			if err == nil {
				CacheHits.Inc()
				span.SetAttributes(
					attribute.String("cache.status", statusHit),
					attribute.String("cache.key", key),
				)

				if validator != "" && validator == entry.ContentHash {
					NotModifiedResponses.WithLabelValues("hit").Inc()
					c.logger.Debug().
						Str("key", key).
						Str("etag", entry.ContentHash).
						Msg("Cache hit - not modified")
					w.WriteHeader(http.StatusNotModified)
					return
				}

				h := w.Header()
				h.Set("ETag", entry.ContentHash)
				h.Set(HeaderCacheStatus, statusHit)
				if err := writeJSON(w, entry.StatusCode, entry.Payload); err != nil {
					c.logger.Debug().Err(err).Str("key", key).Msg("Failed to write cached response")
				}
				c.logger.Debug().
					Str("key", key).
					Dur("ttl", entry.TTL(c.now())).
					Msg("Cache hit")
				return
			}

			CacheMisses.Inc()
			span.SetAttributes(
				attribute.String("cache.status", statusMiss),
				attribute.String("cache.key", key),
			)

			iw := &interceptor{
				ResponseWriter: w,
				cache:          c,
				key:            key,
				ttl:            ttl,
				validator:      validator,
			}
			next.ServeHTTP(iw, r)
			iw.commit()
		})
	}
}

// Invalidate removes entries under prefixes before running next. Removal
// happens whether or not next succeeds.
func (c *ResponseCache) Invalidate(prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.InvalidatePrefix(prefixes...)
			next.ServeHTTP(w, r)
		})
	}
}

// InvalidatePrefix removes every entry whose key starts with one of
// prefixes and returns how many were removed.
func (c *ResponseCache) InvalidatePrefix(prefixes ...string) int {
	removed := c.store.DeletePrefix(prefixes...)
	if removed > 0 {
		Invalidations.WithLabelValues("prefix").Add(float64(removed))
	}
	c.logger.Debug().
		Strs("prefixes", prefixes).
		Int("removed", removed).
		Msg("Cache invalidated")
	return removed
}

// Flush empties the cache.
func (c *ResponseCache) Flush() {
	removed := c.store.Flush()
	if removed > 0 {
		Invalidations.WithLabelValues("flush").Add(float64(removed))
	}
	c.logger.Info().Int("removed", removed).Msg("Cache flushed")
}

// Len returns the number of stored entries, stale ones included.
func (c *ResponseCache) Len() int {
	return c.store.Len()
}

// Keys returns the stored keys in sorted order.
func (c *ResponseCache) Keys() []string {
	return c.store.Keys()
}

// interceptor is the miss-path writer. It buffers the handler's
// WriteHeader so that a later SendJSON can still add ETag and X-Cache,
// and stores every payload that goes through SendJSON.
type interceptor struct {
	http.ResponseWriter

	cache     *ResponseCache
	key       string
	ttl       time.Duration
	validator string

	status      int
	wroteHeader bool
}

func (w *interceptor) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
}

func (w *interceptor) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *interceptor) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// commit forwards a buffered status, if any.
func (w *interceptor) commit() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if w.status != 0 {
		w.ResponseWriter.WriteHeader(w.status)
	}
}

// SendJSON implements JSONSender.
func (w *interceptor) SendJSON(status int, v any) error {
	if w.wroteHeader {
		CacheErrors.WithLabelValues("send").Inc()
		return ErrResponseCommitted
	}
	if status == 0 {
		status = w.status
	}
	if status == 0 {
		status = http.StatusOK
	}

	body, hash, err := HashValue(v)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		w.cache.logger.Error().Err(err).Str("key", w.key).Msg("Failed to encode response")
		return err
	}

	entry := &Entry{
		Key:         w.key,
		Payload:     body,
		ContentHash: hash,
		StatusCode:  status,
		ExpiresAt:   w.cache.now().Add(w.ttl),
	}
	if err := w.cache.store.Set(entry); err != nil {
		return err
	}
	w.cache.logger.Debug().
		Str("key", w.key).
		Str("etag", hash).
		Int("status_code", status).
		Dur("ttl", w.ttl).
		Msg("Cached response")

	w.wroteHeader = true

	if w.validator != "" && w.validator == hash {
		NotModifiedResponses.WithLabelValues("miss").Inc()
		w.ResponseWriter.WriteHeader(http.StatusNotModified)
		return nil
	}

	h := w.Header()
	h.Set("ETag", hash)
	h.Set(HeaderCacheStatus, statusMiss)
	return writeJSON(w.ResponseWriter, status, body)
}

// sendUncached writes v on the miss path without storing an entry.
func (w *interceptor) sendUncached(status int, v any) error {
	if w.wroteHeader {
		CacheErrors.WithLabelValues("send").Inc()
		return ErrResponseCommitted
	}
	if status == 0 {
		status = w.status
	}
	if status == 0 {
		status = http.StatusOK
	}

	body, err := Encode(v)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}
	w.wroteHeader = true
	w.cache.logger.Debug().
		Str("key", w.key).
		Int("status_code", status).
		Msg("Response not cached")

	w.Header().Set(HeaderCacheStatus, statusMiss)
	return writeJSON(w.ResponseWriter, status, body)
}
