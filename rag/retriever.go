package rag

import (
	"context"
	"fmt"
)

// Retriever assembles a CompositeResult for a query against one
// conversation: semantic hits from the vector index, the recency window
// from the ledger, and the summary.
type Retriever struct {
	store *Store
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// Fetch runs the hybrid query. topK and recentLimit fall back to the
// store's configured defaults when <= 0. An empty conversation yields
// empty lists and a zero-count summary, not an error.
func (r *Retriever) Fetch(ctx context.Context, key, query string, topK, recentLimit int) (*CompositeResult, error) {
	if topK <= 0 {
		topK = r.store.config.TopK
	}
	if recentLimit <= 0 {
		recentLimit = r.store.config.RecentLimit
	}

	relevant, err := r.store.Search(ctx, key, query, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	recent, err := r.store.Recent(ctx, key, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent window: %w", err)
	}
	summary, err := r.store.Summary(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	return &CompositeResult{
		RelevantMessages: relevant,
		RecentMessages:   recent,
		Summary:          summary,
	}, nil
}

// FetchFormatted runs Fetch and renders the result with the store's
// configured formatter limits, ready for prompt injection.
func (r *Retriever) FetchFormatted(ctx context.Context, key, query string, topK, recentLimit int) (string, error) {
	result, err := r.Fetch(ctx, key, query, topK, recentLimit)
	if err != nil {
		return "", err
	}
	return NewFormatter(r.store.config).Render(result), nil
}
