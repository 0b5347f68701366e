// Package embedding computes article embedding vectors behind a pluggable
// Provider, and clusters a user's read history into topic centers the
// Ranker scores future articles against.
package embedding

import "context"

// Provider turns a batch of input strings into fixed-dimension embedding
// vectors, one per input, in the same order. Implementations are expected
// to be safe for concurrent use.
type Provider interface {
	// Embed returns one vector per entry in texts. An error fails the
	// whole batch; callers retry at the usecase layer, not here.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Health reports whether the provider is currently reachable.
	Health(ctx context.Context) error
}
