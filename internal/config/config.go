package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Config holds all configuration for the storefront widget process.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server for the view API
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// Product/recommendation backend
	BackendURL               string `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	HTTPClientTimeoutSeconds int    `env:"HTTP_CLIENT_TIMEOUT_SECONDS" envDefault:"10"`
	HTTPClientMaxRetries     int    `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`
	// Backend calls at least this slow are logged at warn level; 0 disables.
	BackendSlowCallMs int `env:"BACKEND_SLOW_CALL_MS" envDefault:"2000"`

	// Per-request bound for recommendation fetches
	RecommendationTimeoutSeconds int `env:"RECOMMENDATION_TIMEOUT_SECONDS" envDefault:"5"`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"15"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Catalog cache (disabled when the address is empty)
	CatalogCacheRedisAddr string `env:"CATALOG_CACHE_REDIS_ADDR" envDefault:""`
	CatalogCacheRedisPass string `env:"CATALOG_CACHE_REDIS_PASSWORD" envDefault:""`
	CatalogCacheRedisDB   int    `env:"CATALOG_CACHE_REDIS_DB" envDefault:"0"`
	CatalogCacheTTL       int    `env:"CATALOG_CACHE_TTL_SECONDS" envDefault:"300"`

	// CORS for a renderer served from another origin
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation, empty disables)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	u, err := url.ParseRequestURI(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid BACKEND_URL %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL must use http or https, got %q", u.Scheme)
	}
	if c.HTTPClientTimeoutSeconds < 1 {
		return fmt.Errorf("HTTP_CLIENT_TIMEOUT_SECONDS must be positive, got %d", c.HTTPClientTimeoutSeconds)
	}
	if c.HTTPClientMaxRetries < 0 {
		return fmt.Errorf("HTTP_CLIENT_MAX_RETRIES must not be negative, got %d", c.HTTPClientMaxRetries)
	}
	if c.BackendSlowCallMs < 0 {
		return fmt.Errorf("BACKEND_SLOW_CALL_MS must not be negative, got %d", c.BackendSlowCallMs)
	}
	if c.RecommendationTimeoutSeconds < 1 {
		return fmt.Errorf("RECOMMENDATION_TIMEOUT_SECONDS must be positive, got %d", c.RecommendationTimeoutSeconds)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.CatalogCacheTTL < 1 {
		return fmt.Errorf("CATALOG_CACHE_TTL_SECONDS must be positive, got %d", c.CatalogCacheTTL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// CatalogCacheEnabled reports whether a Redis catalog cache is configured.
func (c *Config) CatalogCacheEnabled() bool {
	return c.CatalogCacheRedisAddr != ""
}

// CatalogCacheTTLDuration returns the catalog cache TTL.
func (c *Config) CatalogCacheTTLDuration() time.Duration {
	return time.Duration(c.CatalogCacheTTL) * time.Second
}

// RecommendationTimeout returns the per-request recommendation bound.
func (c *Config) RecommendationTimeout() time.Duration {
	return time.Duration(c.RecommendationTimeoutSeconds) * time.Second
}

// BackendSlowCallThreshold returns the duration above which backend calls are
// logged as slow.
func (c *Config) BackendSlowCallThreshold() time.Duration {
	return time.Duration(c.BackendSlowCallMs) * time.Millisecond
}

// HTTPClientConfig returns the backend HTTP client settings.
func (c *Config) HTTPClientConfig() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = time.Duration(c.HTTPClientTimeoutSeconds) * time.Second
	hc.MaxRetries = c.HTTPClientMaxRetries
	return hc
}

// CircuitBreakerConfig returns the backend circuit breaker settings.
func (c *Config) CircuitBreakerConfig() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "backend",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
