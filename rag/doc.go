// Package rag provides a per-conversation retrieval context store.
//
// Each conversation key owns a pair of parallel structures: a flat vector
// index over message embeddings and an ordered ledger of message records.
// Position i in the ledger always corresponds to position i in the index;
// the pair is mutated together or not at all, and persisted through a
// storage.Backend before a mutation is acknowledged.
//
// Architecture:
//   - Store: lazily loads, caches and persists the per-key index/ledger pair
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local use)
//   - Retriever: hybrid queries (semantic search + recency window + summary)
//   - Formatter: renders a composite result into a bounded prompt block
//
// The store never talks to a language model and never authenticates callers;
// it consumes already-extracted message tuples and returns plain results.
package rag
