package cache

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingHandler responds with payload() through SendJSON and counts calls.
type countingHandler struct {
	calls   atomic.Int32
	status  int
	payload func() any
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	if err := SendJSON(w, h.status, h.payload()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func newTestCache(clock *testClock) *ResponseCache {
	return New(WithClock(clock.Now), WithLogger(zerolog.Nop()))
}

func do(t *testing.T, h http.Handler, method, target, etag string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMiddleware_MissThenHit(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	next := &countingHandler{payload: func() any { return []map[string]any{{"productId": 1, "quantity": 2}} }}
	h := c.Middleware(15 * time.Second)(next)

	first := do(t, h, http.MethodGet, "/api/cart", "")
	firstBody := readBody(t, first)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}
	if got := first.Header.Get(HeaderCacheStatus); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	etag := first.Header.Get("ETag")
	if !hexToken.MatchString(etag) {
		t.Fatalf("ETag %q is not a 16-hex token", etag)
	}
	if etag != ContentHash([]byte(firstBody)) {
		t.Errorf("ETag %s does not match body hash", etag)
	}
	if ct := first.Header.Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", ct, ContentTypeJSON)
	}

	second := do(t, h, http.MethodGet, "/api/cart", "")
	secondBody := readBody(t, second)
	if second.StatusCode != http.StatusOK {
		t.Fatalf("second status = %d, want 200", second.StatusCode)
	}
	if got := second.Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if second.Header.Get("ETag") != etag {
		t.Errorf("second ETag = %q, want %q", second.Header.Get("ETag"), etag)
	}
	if secondBody != firstBody {
		t.Errorf("second body = %s, want %s", secondBody, firstBody)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestMiddleware_ConditionalGetOnHit(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	next := &countingHandler{payload: func() any { return map[string]string{"status": "ok"} }}
	h := c.Middleware(time.Minute)(next)

	etag := do(t, h, http.MethodGet, "/api/orders", "").Header.Get("ETag")

	resp := do(t, h, http.MethodGet, "/api/orders", etag)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "" {
		t.Errorf("304 body = %q, want empty", body)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}

	// A stale validator gets the full body.
	resp = do(t, h, http.MethodGet, "/api/orders", "0000000000000000")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with stale validator = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
}

func TestMiddleware_ConditionalGetOnMiss(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	payload := map[string]any{"id": "p1", "name": "Lamp"}
	next := &countingHandler{payload: func() any { return payload }}
	h := c.Middleware(time.Minute)(next)

	_, hash, err := HashValue(payload)
	if err != nil {
		t.Fatalf("HashValue failed: %v", err)
	}

	resp := do(t, h, http.MethodGet, "/api/products/listed/p1", hash)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "" {
		t.Errorf("304 body = %q, want empty", body)
	}

	// The entry was stored despite the short-circuit.
	resp = do(t, h, http.MethodGet, "/api/products/listed/p1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if resp.Header.Get("ETag") != hash {
		t.Errorf("ETag = %q, want %q", resp.Header.Get("ETag"), hash)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestMiddleware_TTLExpiry(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	version := 0
	next := &countingHandler{payload: func() any {
		version++
		return map[string]int{"version": version}
	}}
	h := c.Middleware(30 * time.Second)(next)

	first := do(t, h, http.MethodGet, "/api/orders", "")
	firstTag := first.Header.Get("ETag")

	clock.Advance(29 * time.Second)
	if got := do(t, h, http.MethodGet, "/api/orders", "").Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("before expiry X-Cache = %q, want HIT", got)
	}

	clock.Advance(1 * time.Second)
	resp := do(t, h, http.MethodGet, "/api/orders", "")
	if got := resp.Header.Get(HeaderCacheStatus); got != "MISS" {
		t.Errorf("after expiry X-Cache = %q, want MISS", got)
	}
	if resp.Header.Get("ETag") == firstTag {
		t.Errorf("expected a new ETag after expiry, got %s again", firstTag)
	}
	if body := readBody(t, resp); body != `{"version":2}` {
		t.Errorf("body = %s, want {\"version\":2}", body)
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("handler ran %d times, want 2", n)
	}
}

func TestMiddleware_InvalidationPrecision(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	next := &countingHandler{payload: func() any { return []int{} }}
	h := c.Middleware(time.Minute)(next)

	do(t, h, http.MethodGet, "/api/cart", "")
	do(t, h, http.MethodGet, "/api/orders", "")

	if removed := c.InvalidatePrefix("/api/cart"); removed != 1 {
		t.Errorf("InvalidatePrefix() = %d, want 1", removed)
	}

	if got := do(t, h, http.MethodGet, "/api/orders", "").Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("/api/orders X-Cache = %q, want HIT", got)
	}
	if got := do(t, h, http.MethodGet, "/api/cart", "").Header.Get(HeaderCacheStatus); got != "MISS" {
		t.Errorf("/api/cart X-Cache = %q, want MISS", got)
	}
}

func TestMiddleware_NonGETBypass(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	next := &countingHandler{status: http.StatusCreated, payload: func() any { return map[string]bool{"ok": true} }}
	h := c.Middleware(time.Minute)(next)

	do(t, h, http.MethodGet, "/api/cart", "")
	before := c.Keys()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		resp := do(t, h, method, "/api/cart", "")
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("%s status = %d, want 201", method, resp.StatusCode)
		}
		if resp.Header.Get("ETag") != "" || resp.Header.Get(HeaderCacheStatus) != "" {
			t.Errorf("%s response carries cache headers: %v", method, resp.Header)
		}
	}

	after := c.Keys()
	if len(before) != 1 || len(after) != 1 || before[0] != after[0] {
		t.Errorf("store changed by non-GET requests: before %v after %v", before, after)
	}
	if n := next.calls.Load(); n != 4 {
		t.Errorf("handler ran %d times, want 4", n)
	}
}

func TestMiddleware_StatusRecorded(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = SendJSON(w, 0, map[string]string{"error": "Listed product not found"})
	})
	h := c.Middleware(time.Minute)(next)

	first := do(t, h, http.MethodGet, "/api/products/listed/missing", "")
	if first.StatusCode != http.StatusNotFound {
		t.Errorf("first status = %d, want 404", first.StatusCode)
	}
	if first.Header.Get("ETag") == "" {
		t.Error("ETag missing on buffered-status response")
	}

	second := do(t, h, http.MethodGet, "/api/products/listed/missing", "")
	if second.StatusCode != http.StatusNotFound {
		t.Errorf("cached status = %d, want 404", second.StatusCode)
	}
	if got := second.Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
}

func TestMiddleware_NonJSONResponseNotCached(t *testing.T) {
	clock := newTestClock()
	c := newTestCache(clock)
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "plain")
	})
	h := c.Middleware(time.Minute)(next)

	for i := 0; i < 2; i++ {
		resp := do(t, h, http.MethodGet, "/api/health", "")
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("status = %d, want 202", resp.StatusCode)
		}
		if body := readBody(t, resp); body != "plain" {
			t.Errorf("body = %q, want plain", body)
		}
		if resp.Header.Get(HeaderCacheStatus) != "" {
			t.Errorf("unexpected X-Cache %q on raw response", resp.Header.Get(HeaderCacheStatus))
		}
	}
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMiddleware_HeaderOnlyResponse(t *testing.T) {
	c := newTestCache(newTestClock())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := c.Middleware(time.Minute)(next)

	resp := do(t, h, http.MethodGet, "/api/empty", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMiddleware_EncodeFailureNotCached(t *testing.T) {
	c := newTestCache(newTestClock())
	next := &countingHandler{payload: func() any { return math.Inf(1) }}
	h := c.Middleware(time.Minute)(next)

	resp := do(t, h, http.MethodGet, "/api/broken", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if resp.Header.Get("ETag") != "" {
		t.Errorf("unexpected ETag %q on failed encode", resp.Header.Get("ETag"))
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMiddleware_QueryStringIsPartOfKey(t *testing.T) {
	c := newTestCache(newTestClock())
	next := &countingHandler{payload: func() any { return []int{1} }}
	h := c.Middleware(time.Minute)(next)

	do(t, h, http.MethodGet, "/api/catalog/products?limit=10", "")
	resp := do(t, h, http.MethodGet, "/api/catalog/products?limit=20", "")
	if got := resp.Header.Get(HeaderCacheStatus); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS for different query", got)
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("handler ran %d times, want 2", n)
	}
}

func TestInvalidate_RunsBeforeHandler(t *testing.T) {
	c := newTestCache(newTestClock())
	reader := &countingHandler{payload: func() any { return []int{} }}
	get := c.Middleware(time.Minute)(reader)
	do(t, get, http.MethodGet, "/api/cart", "")

	var lenDuringHandler int
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lenDuringHandler = c.Len()
		w.WriteHeader(http.StatusInternalServerError)
	})
	mutate := c.Invalidate("/api/cart", "/api/orders")(failing)

	resp := do(t, mutate, http.MethodPost, "/api/cart", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if lenDuringHandler != 0 {
		t.Errorf("cache held %d entries while mutation ran, want 0", lenDuringHandler)
	}
	if c.Len() != 0 {
		t.Errorf("failed mutation left %d entries, want 0", c.Len())
	}
}

func TestInvalidate_EmptyStore(t *testing.T) {
	c := newTestCache(newTestClock())
	if removed := c.InvalidatePrefix("/api/cart"); removed != 0 {
		t.Errorf("InvalidatePrefix() on empty store = %d, want 0", removed)
	}
}

func TestFlush_Idempotent(t *testing.T) {
	c := newTestCache(newTestClock())
	c.Flush()
	if c.Len() != 0 {
		t.Fatalf("Len() after flushing empty cache = %d", c.Len())
	}

	h := c.Middleware(time.Minute)(&countingHandler{payload: func() any { return []int{} }})
	do(t, h, http.MethodGet, "/api/cart", "")
	do(t, h, http.MethodGet, "/api/orders", "")

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after flush = %d, want 0", c.Len())
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after second flush = %d, want 0", c.Len())
	}
}

// wrappingWriter hides the interceptor behind another writer, the way
// instrumentation middleware does.
type wrappingWriter struct {
	http.ResponseWriter
}

func (w *wrappingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func TestSendJSON_FindsWrappedSender(t *testing.T) {
	c := newTestCache(newTestClock())
	inner := &countingHandler{payload: func() any { return []string{"a"} }}
	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(&wrappingWriter{w}, r)
	})
	h := c.Middleware(time.Minute)(wrapped)

	do(t, h, http.MethodGet, "/api/favorites", "")
	if got := do(t, h, http.MethodGet, "/api/favorites", "").Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
}

func TestSendJSON_Uncached(t *testing.T) {
	w := httptest.NewRecorder()
	if err := SendJSON(w, 0, map[string]bool{"success": true}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"success":true}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get("ETag") != "" {
		t.Errorf("unexpected ETag outside cache middleware")
	}
}

func TestSendJSON_TwiceIsRejected(t *testing.T) {
	c := newTestCache(newTestClock())
	var secondErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = SendJSON(w, 0, []int{1})
		secondErr = SendJSON(w, 0, []int{2})
	})
	do(t, c.Middleware(time.Minute)(next), http.MethodGet, "/api/twice", "")

	if secondErr != ErrResponseCommitted {
		t.Errorf("second SendJSON error = %v, want ErrResponseCommitted", secondErr)
	}
}

func TestSendUncachedJSON_NotStored(t *testing.T) {
	c := newTestCache(newTestClock())
	var failing atomic.Bool
	failing.Store(true)
	var calls atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			_ = SendUncachedJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to load catalog"})
			return
		}
		_ = SendJSON(w, http.StatusOK, []int{1, 2})
	})
	h := c.Middleware(5 * time.Minute)(next)

	first := do(t, h, http.MethodGet, "/api/catalog/products", "")
	if first.StatusCode != http.StatusBadGateway {
		t.Fatalf("first status = %d, want 502", first.StatusCode)
	}
	if got := first.Header.Get(HeaderCacheStatus); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	if first.Header.Get("ETag") != "" {
		t.Errorf("uncached response carries ETag %q", first.Header.Get("ETag"))
	}
	if ct := first.Header.Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", ct, ContentTypeJSON)
	}
	if c.Len() != 0 {
		t.Fatalf("entries after uncached send = %d, want 0", c.Len())
	}

	failing.Store(false)
	second := do(t, h, http.MethodGet, "/api/catalog/products", "")
	if second.StatusCode != http.StatusOK {
		t.Errorf("status after recovery = %d, want 200", second.StatusCode)
	}
	third := do(t, h, http.MethodGet, "/api/catalog/products", "")
	if got := third.Header.Get(HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache after recovery = %q, want HIT", got)
	}
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
}

func TestSendUncachedJSON_OutsideCache(t *testing.T) {
	w := httptest.NewRecorder()
	if err := SendUncachedJSON(w, http.StatusBadGateway, map[string]string{"error": "down"}); err != nil {
		t.Fatalf("SendUncachedJSON failed: %v", err)
	}
	if w.Code != http.StatusBadGateway || w.Body.String() != `{"error":"down"}` {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}
