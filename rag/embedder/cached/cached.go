// Package cached wraps any Embedder with a ristretto read-through cache
// keyed by text. Chat traffic repeats itself (the same query embedded on
// every retrieval, re-indexed history on reconnect), so a small cache
// saves most inference calls.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/sparkmatch/chatrag/rag"
)

// Embedder is a caching decorator around another rag.Embedder.
type Embedder struct {
	inner rag.Embedder
	cache *ristretto.Cache
}

var _ rag.Embedder = (*Embedder)(nil)

// Wrap creates the decorator. maxBytes bounds the cache by total text
// length (cost = len(text)); <= 0 defaults to 32 MiB.
func Wrap(inner rag.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or falls through to the inner
// embedder and caches the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(text)))
	return vec, nil
}

// EmbedBatch serves hits from the cache and sends only the misses to the
// inner embedder's batch call, preserving input order in the result.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := e.cache.Get(t); ok {
			if vec, ok := v.([]float32); ok {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("inner embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		e.cache.Set(texts[i], vecs[j], int64(len(texts[i])))
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Mainly for tests;
// ristretto admits entries asynchronously.
func (e *Embedder) Wait() {
	e.cache.Wait()
}
