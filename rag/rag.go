package rag

import "context"

// Embedder converts text to vector embeddings.
// Implementations: embedder/mock (testing), embedder/onnx (local),
// embedder/cached (read-through cache around either).
//
// The store is agnostic to how vectors are produced; it only requires a
// fixed output dimensionality per deployment.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one call, preserving order.
	// Batch insertion uses this so provider overhead is paid once.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
