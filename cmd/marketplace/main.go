package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alusatu/marketplace/internal/api"
	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/config"
	"github.com/alusatu/marketplace/internal/storage/sqlite"
	"github.com/alusatu/marketplace/internal/telemetry"
	"github.com/alusatu/marketplace/pkg/cache"
	"github.com/alusatu/marketplace/pkg/catalog"
	"github.com/alusatu/marketplace/pkg/client"
	"github.com/alusatu/marketplace/pkg/logging"
	"github.com/alusatu/marketplace/pkg/metrics"
	"github.com/alusatu/marketplace/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	serviceName     = "alu-satu-marketplace"
	shutdownTimeout = 10 * time.Second
	readyTimeout    = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	logger := logging.Setup(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: serviceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Info().Str("path", cfg.DBPath).Msg("Database ready")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	} else {
		logger.Warn().Msg("MARKETPLACE_REDIS_ADDR not set, rate limiting disabled")
	}

	upstream, err := client.New(client.DefaultConfig(cfg.CatalogURL, cfg.CatalogUserAgent))
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}
	upstream.SetLogger(logging.NewLogger(logging.ComponentCatalogClient))

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	catalogService := catalog.NewService(upstream, catalog.DefaultConfig())
	catalogService.SetLogger(logging.NewLogger(logging.ComponentCatalog))

	server := api.New(api.Deps{
		Store:   store,
		Cache:   cache.New(cache.WithLogger(logging.NewLogger(logging.ComponentCache))),
		Issuer:  issuer,
		Guard:   auth.NewGuard(issuer, store, cfg.AuthCookie, cfg.SecureCookies, logging.NewLogger(logging.ComponentAuth)),
		Catalog: catalogService,
		Logger:  logging.NewLogger(logging.ComponentAPI),
	})

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewTracker(redisClient, logging.NewLogger(logging.ComponentRateLimit), cfg.RateLimit, cfg.RateWindow)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(server.Routes(), store, redisClient, limiter, cfg.TrustProxy, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("Starting marketplace server")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newHandler mounts the health checks and metrics next to the API. The limiter
// only covers /api/ and may be nil. trustProxy keys it on X-Forwarded-For.
func newHandler(routes http.Handler, db pinger, redisClient *redis.Client, limiter ratelimit.Limiter, trustProxy bool, logger zerolog.Logger) http.Handler {
	var apiHandler http.Handler = routes
	if limiter != nil {
		apiHandler = ratelimit.Middleware(limiter, logger, ratelimit.WithTrustProxy(trustProxy))(apiHandler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(db, redisClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/api/", apiHandler)

	return logging.Middleware(logger)(api.CORS(mux))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports 503 while the database or, when configured, Redis
// cannot be reached.
func readyHandler(db pinger, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
