package cached_test

import (
	"context"
	"testing"

	"github.com/sparkmatch/chatrag/rag/embedder/cached"
	"github.com/sparkmatch/chatrag/rag/embedder/mock"
)

// countingEmbedder wraps the mock embedder and counts inference calls.
type countingEmbedder struct {
	*mock.Embedder
	embeds  int
	batches int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds++
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches++
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestEmbed_CachesResults(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: mock.New(32)}
	e, err := cached.Wrap(inner, 0)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	first, err := e.Embed(ctx, "repeat me")
	if err != nil {
		t.Fatalf("First embed failed: %v", err)
	}
	e.Wait()

	second, err := e.Embed(ctx, "repeat me")
	if err != nil {
		t.Fatalf("Second embed failed: %v", err)
	}
	if inner.embeds != 1 {
		t.Errorf("Expected one inference call, got %d", inner.embeds)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("Cached vector differs from original")
		}
	}
}

func TestEmbedBatch_FillsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: mock.New(32)}
	e, err := cached.Wrap(inner, 0)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	warm, err := e.Embed(ctx, "warm entry")
	if err != nil {
		t.Fatalf("Warm embed failed: %v", err)
	}
	e.Wait()

	texts := []string{"cold one", "warm entry", "cold two"}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vecs))
	}
	for i := range warm {
		if vecs[1][i] != warm[i] {
			t.Fatal("Warm entry should come from the cache unchanged")
		}
	}

	// Order must match input regardless of which entries were cached
	for i, text := range texts {
		direct, err := inner.Embedder.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Direct embed failed: %v", err)
		}
		for j := range direct {
			if vecs[i][j] != direct[j] {
				t.Fatalf("Vector %d does not correspond to its input text", i)
			}
		}
	}
}

func TestDimensions_PassThrough(t *testing.T) {
	e, err := cached.Wrap(mock.New(48), 0)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if e.Dimensions() != 48 {
		t.Errorf("Expected 48, got %d", e.Dimensions())
	}
}
