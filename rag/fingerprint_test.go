package rag_test

import (
	"testing"

	"github.com/sparkmatch/chatrag/rag"
)

func TestMessageID(t *testing.T) {
	a := rag.MessageID("u1", "hello", "2026-08-01T10:00:00Z")
	b := rag.MessageID("u1", "hello", "2026-08-01T10:00:00Z")
	if a != b {
		t.Error("Same tuple must fingerprint identically")
	}
	if len(a) != 32 {
		t.Errorf("Expected 32 hex chars, got %d", len(a))
	}

	variants := []string{
		rag.MessageID("u2", "hello", "2026-08-01T10:00:00Z"),
		rag.MessageID("u1", "hello!", "2026-08-01T10:00:00Z"),
		rag.MessageID("u1", "hello", "2026-08-01T10:00:01Z"),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("Variant %d should fingerprint differently", i)
		}
	}
}
