// Package fetcher implements the SSRF-safe HTTP client used to retrieve
// remote feed documents: DNS-resolve-then-validate on the initial URL, the
// same validation plus entity.IsSafeRedirect on every redirect hop, a
// per-host token bucket, and a circuit breaker around the round trip.
package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the security and performance behavior of Fetcher.
type Config struct {
	// Timeout bounds a single HTTP round trip, including redirects.
	Timeout time.Duration

	// MaxBodySize is the maximum response body read, in bytes.
	MaxBodySize int64

	// MaxRedirects is the maximum number of redirects followed before
	// ErrTooManyRedirects.
	MaxRedirects int

	// DenyPrivateIPs blocks requests (and redirect targets) that resolve to
	// a private, loopback, link-local, or otherwise internal address.
	// Should always be true in production; exists for integration tests
	// that fetch from a local httptest.Server.
	DenyPrivateIPs bool

	// RequestsPerSecondPerHost throttles outbound requests to a single
	// remote host, independent of how many feeds on that host are due.
	RequestsPerSecondPerHost float64

	// UserAgent identifies the proxy to upstream feed servers.
	UserAgent string
}

func DefaultConfig() Config {
	return Config{
		Timeout:                  15 * time.Second,
		MaxBodySize:              10 * 1024 * 1024,
		MaxRedirects:             5,
		DenyPrivateIPs:           true,
		RequestsPerSecondPerHost: 1,
		UserAgent:                "feedproxy/1.0 (+https://github.com/feedproxy)",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxBodySize < 1024 || c.MaxBodySize > 100*1024*1024 {
		return fmt.Errorf("max body size must be between 1KB and 100MB, got %d", c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	if c.RequestsPerSecondPerHost <= 0 {
		return fmt.Errorf("requests per second per host must be positive, got %f", c.RequestsPerSecondPerHost)
	}
	return nil
}

// LoadConfigFromEnv loads Config from FETCH_* environment variables, falling
// back to DefaultConfig for anything unset.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("FETCH_MAX_BODY_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_MAX_BODY_SIZE: %w", err)
		}
		cfg.MaxBodySize = n
	}
	if v := os.Getenv("FETCH_MAX_REDIRECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_MAX_REDIRECTS: %w", err)
		}
		cfg.MaxRedirects = n
	}
	if v := os.Getenv("FETCH_DENY_PRIVATE_IPS"); v != "" {
		cfg.DenyPrivateIPs = v == "true"
	}
	if v := os.Getenv("FETCH_REQUESTS_PER_SECOND_PER_HOST"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_REQUESTS_PER_SECOND_PER_HOST: %w", err)
		}
		cfg.RequestsPerSecondPerHost = f
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
