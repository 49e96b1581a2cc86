// Package mock provides a deterministic embedder for tests and offline
// development. It has no semantic understanding: identical texts map to
// identical vectors, different texts to (almost certainly) different ones.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates hash-derived unit vectors.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the given dimension. dim <= 0 falls
// back to 384, matching all-MiniLM-L6-v2.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = 384
	}
	return &Embedder{dimensions: dim}
}

// Embed creates a deterministic embedding from the text's FNV hash,
// expanded with a linear congruential generator and normalized to a unit
// vector.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// EmbedBatch embeds each text independently, preserving order.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
