package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// FallbackDimensions is the vector length produced by FallbackProvider.
const FallbackDimensions = 32

// FallbackProvider derives a deterministic vector from the hash of its input
// text. It is not a semantic embedding: two unrelated texts that happen to
// hash to similar bit patterns will look close together. It exists so the
// rest of the pipeline (batching, clustering, ranking) can run end-to-end in
// tests and local development without a reachable OpenAI account.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

func (p *FallbackProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text)
	}
	return vectors, nil
}

func (p *FallbackProvider) Health(ctx context.Context) error {
	return nil
}

// hashVector expands a 64-bit FNV-1a digest of text into FallbackDimensions
// floats in [-1, 1] by re-hashing with the dimension index folded in, then
// L2-normalizes the result so cosine distance behaves the way it would for a
// real embedding.
func hashVector(text string) []float32 {
	vec := make([]float32, FallbackDimensions)
	var sumSq float64
	for i := range vec {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map the top 32 bits onto [-1, 1].
		v := float32(int32(sum>>32)) / float32(1<<31)
		vec[i] = v
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
