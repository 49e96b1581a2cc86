package flat_test

import (
	"testing"

	"github.com/sparkmatch/chatrag/rag/index/flat"
)

func TestSearch_OrdersByDistance(t *testing.T) {
	ix := flat.New(2)
	err := ix.Insert([][]float32{
		{0, 0},
		{3, 4},
		{1, 0},
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	hits, err := ix.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	wantPositions := []int{0, 2, 1}
	wantDistances := []float32{0, 1, 25}
	for i, h := range hits {
		if h.Position != wantPositions[i] {
			t.Errorf("Hit %d: expected position %d, got %d", i, wantPositions[i], h.Position)
		}
		if h.Distance != wantDistances[i] {
			t.Errorf("Hit %d: expected distance %f, got %f", i, wantDistances[i], h.Distance)
		}
	}
}

func TestSearch_ClampsK(t *testing.T) {
	ix := flat.New(2)
	if err := ix.Insert([][]float32{{1, 1}, {2, 2}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	hits, err := ix.Search([]float32{0, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("k beyond count should clamp to 2, got %d", len(hits))
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	ix := flat.New(4)
	hits, err := ix.Search([]float32{0, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index errored: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected empty result, got %d hits", len(hits))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	ix := flat.New(3)
	if _, err := ix.Search([]float32{1, 2}, 1); err == nil {
		t.Error("Wrong query dimension should error")
	}
}

func TestInsert_DimensionMismatchLeavesIndexUntouched(t *testing.T) {
	ix := flat.New(2)
	err := ix.Insert([][]float32{
		{1, 2},
		{1, 2, 3},
	})
	if err == nil {
		t.Fatal("Mismatched vector should error")
	}
	if ix.Count() != 0 {
		t.Errorf("Failed insert should store nothing, got count %d", ix.Count())
	}
}

func TestTruncate(t *testing.T) {
	ix := flat.New(2)
	if err := ix.Insert([][]float32{{1, 0}, {2, 0}, {3, 0}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ix.Truncate(1)
	if ix.Count() != 1 {
		t.Fatalf("Expected count 1 after truncate, got %d", ix.Count())
	}
	hits, err := ix.Search([]float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Position != 0 {
		t.Errorf("Expected only position 0 to survive, got %+v", hits)
	}

	// Growing again reuses the freed positions
	if err := ix.Insert([][]float32{{9, 9}}); err != nil {
		t.Fatalf("Insert after truncate failed: %v", err)
	}
	if ix.Count() != 2 {
		t.Errorf("Expected count 2, got %d", ix.Count())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	ix := flat.New(3)
	if err := ix.Insert([][]float32{{1, 2, 3}, {4, 5, 6}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	restored, err := flat.Unmarshal(ix.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if restored.Dim() != 3 || restored.Count() != 2 {
		t.Fatalf("Restored shape wrong: dim=%d count=%d", restored.Dim(), restored.Count())
	}

	hits, err := restored.Search([]float32{4, 5, 6}, 1)
	if err != nil {
		t.Fatalf("Search on restored index failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Position != 1 || hits[0].Distance != 0 {
		t.Errorf("Restored index search wrong: %+v", hits)
	}
}

func TestMarshalRoundTrip_Empty(t *testing.T) {
	restored, err := flat.Unmarshal(flat.New(5).Marshal())
	if err != nil {
		t.Fatalf("Unmarshal of empty index failed: %v", err)
	}
	if restored.Dim() != 5 || restored.Count() != 0 {
		t.Errorf("Restored empty index wrong: dim=%d count=%d", restored.Dim(), restored.Count())
	}
}

func TestUnmarshal_RejectsBadPayloads(t *testing.T) {
	good := flat.New(2)
	if err := good.Insert([][]float32{{1, 2}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	payload := good.Marshal()

	cases := map[string][]byte{
		"empty":          nil,
		"foreign magic":  append([]byte("NOPE"), payload[4:]...),
		"truncated body": payload[:len(payload)-3],
		"bad version":    append(append([]byte{}, payload[:4]...), append([]byte{99}, payload[5:]...)...),
	}
	for name, data := range cases {
		if _, err := flat.Unmarshal(data); err == nil {
			t.Errorf("%s payload should be rejected", name)
		}
	}
}

func TestRelevance(t *testing.T) {
	if got := flat.Relevance(0); got != 1.0 {
		t.Errorf("Zero distance should score 1.0, got %f", got)
	}
	if flat.Relevance(1) <= flat.Relevance(0.5) {
		t.Error("Score must decrease with distance")
	}
	if flat.Relevance(1000) <= 0 {
		t.Error("Score must stay positive")
	}
}
