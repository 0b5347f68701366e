package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"feedproxy/internal/resilience/circuitbreaker"
	"feedproxy/internal/resilience/retry"
)

// OpenAIProvider embeds text via OpenAI's embeddings API, guarded by a
// circuit breaker and retried with backoff the same way the rest of the
// outbound AI traffic in this codebase is.
type OpenAIProvider struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          openai.EmbeddingModel
	timeout        time.Duration
}

func NewOpenAIProvider(apiKey string, cfg *OpenAIConfig) *OpenAIProvider {
	slog.Info("initialized openai embedding provider", slog.String("model", cfg.Model))
	return NewOpenAIProviderWithClient(openai.NewClient(apiKey), cfg)
}

// NewOpenAIProviderWithClient builds a provider around a caller-supplied
// client, letting tests point it at a local server instead of the real API.
func NewOpenAIProviderWithClient(client *openai.Client, cfg *OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          openai.EmbeddingModel(cfg.Model),
		timeout:        cfg.Timeout,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var vectors [][]float32
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doEmbed(ctx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai embedding circuit breaker open, request rejected",
					slog.String("state", p.circuitBreaker.State().String()))
				return fmt.Errorf("openai embeddings unavailable: circuit breaker open")
			}
			return err
		}
		vectors = cbResult.([][]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai embed failed after retries: %w", retryErr)
	}
	return vectors, nil
}

func (p *OpenAIProvider) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai api returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (p *OpenAIProvider) Health(ctx context.Context) error {
	if p.circuitBreaker.IsOpen() {
		return fmt.Errorf("openai embedding circuit breaker open")
	}
	return nil
}
