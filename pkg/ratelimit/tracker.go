package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_rate_limit_rejections_total",
		Help: "Total number of requests rejected with 429",
	})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_rate_limit_errors_total",
		Help: "Total number of limiter backend errors (request allowed)",
	})
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, client string) (Window, error)
}

// Tracker counts requests per client in fixed windows stored in Redis.
// Counters are shared by every API instance pointed at the same Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
// Non-positive limit or window fall back to DefaultLimit and DefaultWindow.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, limit int, window time.Duration) *Tracker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Key returns the Redis key counting client's requests in the window
// containing now.
func (t *Tracker) Key(client string, now time.Time) string {
	start := windowStart(now, t.window)
	return strings.Join([]string{KeyPrefix, client, strconv.FormatInt(start.Unix(), 10)}, ":")
}

// Allow records one request for client and returns the resulting window.
func (t *Tracker) Allow(ctx context.Context, client string) (Window, error) {
	now := t.now()
	key := t.Key(client, now)
	resetAt := windowStart(now, t.window).Add(t.window)

	// INCR and EXPIRE in one round trip
	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, resetAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return Window{}, fmt.Errorf("increment rate limit counter: %w", err)
	}

	w := Window{
		Limit:   t.limit,
		Count:   int(incr.Val()),
		ResetAt: resetAt,
	}

	if !w.Allowed() {
		t.logger.Debug().
			Str("client", client).
			Int("count", w.Count).
			Time("reset_at", w.ResetAt).
			Msg("Rate limit exceeded")
	}

	return w, nil
}
