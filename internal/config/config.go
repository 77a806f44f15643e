// Package config loads marketplace server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration.
type Config struct {
	// HTTP
	Addr string `env:"MARKETPLACE_ADDR" envDefault:":4000"`

	// Storage
	DBPath string `env:"MARKETPLACE_DB_PATH" envDefault:"marketplace.db"`

	// Redis for rate limiting; empty disables the limiter
	RedisAddr string `env:"MARKETPLACE_REDIS_ADDR"`

	// Auth
	JWTSecret     string        `env:"MARKETPLACE_JWT_SECRET" envDefault:"alu-satu-secret-key-2024"`
	AuthCookie    string        `env:"MARKETPLACE_AUTH_COOKIE" envDefault:"auth_token"`
	TokenTTL      time.Duration `env:"MARKETPLACE_TOKEN_TTL" envDefault:"720h"`
	SecureCookies bool          `env:"MARKETPLACE_SECURE_COOKIES" envDefault:"false"`

	// Rate limiting
	RateLimit  int           `env:"MARKETPLACE_RATE_LIMIT" envDefault:"60"`
	RateWindow time.Duration `env:"MARKETPLACE_RATE_WINDOW" envDefault:"1m"`

	// TrustProxy keys clients on X-Forwarded-For; only set behind a proxy
	TrustProxy bool `env:"MARKETPLACE_TRUST_PROXY" envDefault:"false"`

	// Upstream catalog
	CatalogURL       string `env:"MARKETPLACE_CATALOG_URL" envDefault:"https://dummyjson.com"`
	CatalogUserAgent string `env:"MARKETPLACE_CATALOG_USER_AGENT" envDefault:"alu-satu-marketplace/1.0"`

	// Logging
	LogLevel  string `env:"MARKETPLACE_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"MARKETPLACE_LOG_PRETTY" envDefault:"false"`

	// Tracing; empty endpoint disables export
	OTelEndpoint string `env:"MARKETPLACE_OTEL_ENDPOINT"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("MARKETPLACE_ADDR is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("MARKETPLACE_DB_PATH is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("MARKETPLACE_JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("MARKETPLACE_TOKEN_TTL must be positive (got %s)", c.TokenTTL)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("MARKETPLACE_RATE_LIMIT must be positive (got %d)", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("MARKETPLACE_RATE_WINDOW must be positive (got %s)", c.RateWindow)
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
