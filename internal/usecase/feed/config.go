package feed

import (
	"time"

	"feedproxy/internal/pkg/config"
)

// Config holds the environment-tunable knobs get_feed/log_click need:
// how stale a feed must be before a refresh is enqueued, how long the
// synchronous path waits for that refresh, and how many articles a
// response carries.
type Config struct {
	BaseURL             string
	RootPath            string
	RefreshInterval     time.Duration
	RefreshPollInterval time.Duration
	RefreshTimeout      time.Duration
	RecentArticles      int
}

func DefaultConfig() Config {
	return Config{
		RefreshInterval:     24 * time.Hour,
		RefreshPollInterval: 500 * time.Millisecond,
		RefreshTimeout:      10 * time.Second,
		RecentArticles:      30,
	}
}

func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = config.LoadEnvString("API_BASE_URL", "")
	cfg.RootPath = config.LoadEnvString("ROOT_PATH", "")
	return cfg
}
