package embedding

import (
	"fmt"
	"time"

	"feedproxy/internal/pkg/config"
)

// OpenAIConfig holds the parameters for the OpenAI-backed embedding provider.
type OpenAIConfig struct {
	Model   string
	Timeout time.Duration
}

func (c *OpenAIConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// LoadOpenAIConfig reads EMBEDDING_MODEL and EMBEDDING_TIMEOUT, falling back
// to text-embedding-3-small and 30s.
func LoadOpenAIConfig() (*OpenAIConfig, error) {
	timeoutResult := config.LoadEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second, config.ValidatePositiveDuration)
	cfg := &OpenAIConfig{
		Model:   config.LoadEnvString("EMBEDDING_MODEL", "text-embedding-3-small"),
		Timeout: timeoutResult.Value.(time.Duration),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	return cfg, nil
}
