// Package logging configures the marketplace's zerolog loggers.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names attached to component loggers.
const (
	ComponentAPI           = "api"
	ComponentAuth          = "auth"
	ComponentCache         = "response-cache"
	ComponentCatalog       = "catalog"
	ComponentCatalogClient = "catalog-client"
	ComponentRateLimit     = "ratelimit"
)

// Config selects level, format and destination of the process logger.
type Config struct {
	// Level is a zerolog level name; unknown or empty names mean info.
	Level string

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service is attached to every event as "service" when set.
	Service string
}

// Setup builds the process logger from cfg, installs it as the global
// zerolog logger and sets the global level.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level, accepting "warning" as
// an alias. Anything unrecognised is info.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// NewLogger derives a logger tagged with component from the global logger.
// Call it after Setup so the service field and output are inherited.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels in use:
//
//	debug  cache hit/miss/store/invalidate, upstream request flow
//	info   completed requests, cache flushes, startup and shutdown
//	warn   upstream retries, limiter errors (fail open), rejected clients
//	error  storage failures behind 500s, encode failures
//
// Fields: component, service, method, path, status_code, duration, key,
// etag, ttl, prefixes, removed.
