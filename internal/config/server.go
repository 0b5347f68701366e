package config

import "feedproxy/internal/pkg/config"

// ServerConfig holds the externally-visible address this instance is
// reachable at, used to build the self-referential links the Link Rewriter
// embeds in rewritten feed documents (channel self-link, per-article
// tracker links).
type ServerConfig struct {
	// BaseURL is the scheme+host the proxy is reachable at, e.g.
	// "https://feeds.example.com". No trailing slash.
	BaseURL string

	// RootPath is an optional path prefix applied ahead of "/v1/...",
	// e.g. "/proxy" when the service sits behind a path-based router.
	RootPath string
}

// LoadServerConfig reads BASE_URL and ROOT_PATH, defaulting to a loopback
// address suitable for local development.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		BaseURL:  config.LoadEnvString("BASE_URL", "http://localhost:8080"),
		RootPath: config.LoadEnvString("ROOT_PATH", ""),
	}
}
