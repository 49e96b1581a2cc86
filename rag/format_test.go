package rag_test

import (
	"strings"
	"testing"

	"github.com/sparkmatch/chatrag/rag"
)

func record(name, content, ts string) rag.MessageRecord {
	return rag.MessageRecord{SenderName: name, Content: content, Timestamp: ts}
}

func TestFormatter_RelevanceFloor(t *testing.T) {
	f := rag.NewFormatter(nil)
	result := &rag.CompositeResult{
		RelevantMessages: []rag.ScoredMessage{
			{MessageRecord: record("Alice", "barely misses the cut", "t"), RelevanceScore: 0.25},
			{MessageRecord: record("Bob", "barely makes the cut", "t"), RelevanceScore: 0.31},
		},
		Summary: rag.ConversationSummary{TotalMessages: 2},
	}

	out := f.Render(result)
	if strings.Contains(out, "barely misses the cut") {
		t.Error("Score 0.25 should be dropped by the floor")
	}
	if !strings.Contains(out, "Bob: barely makes the cut") {
		t.Errorf("Score 0.31 should be included, got:\n%s", out)
	}
}

func TestFormatter_SectionOrder(t *testing.T) {
	f := rag.NewFormatter(nil)
	result := &rag.CompositeResult{
		RelevantMessages: []rag.ScoredMessage{
			{MessageRecord: record("Bob", "that hike we discussed", "t1"), RelevanceScore: 0.9},
		},
		RecentMessages: []rag.MessageRecord{
			record("Alice", "see you saturday", "t2"),
		},
		Summary: rag.ConversationSummary{TotalMessages: 12},
	}

	out := f.Render(result)
	want := "[Conversation has 12 messages]\n" +
		"\n" +
		"=== Recent Conversation ===\n" +
		"Alice: see you saturday\n" +
		"\n" +
		"=== Relevant Past Messages ===\n" +
		"Bob: that hike we discussed\n"
	if out != want {
		t.Errorf("Output mismatch.\nwant:\n%q\ngot:\n%q", want, out)
	}
}

func TestFormatter_OmitsEmptySections(t *testing.T) {
	f := rag.NewFormatter(nil)

	// All hits below the floor: no relevant header at all
	result := &rag.CompositeResult{
		RelevantMessages: []rag.ScoredMessage{
			{MessageRecord: record("Alice", "noise", "t"), RelevanceScore: 0.1},
		},
		Summary: rag.ConversationSummary{TotalMessages: 1},
	}
	out := f.Render(result)
	if strings.Contains(out, "Relevant Past Messages") {
		t.Errorf("No qualifying hits should mean no header, got:\n%s", out)
	}

	// Fully empty composite renders empty
	if got := f.Render(&rag.CompositeResult{}); got != "" {
		t.Errorf("Empty composite should render empty, got %q", got)
	}
	if got := f.Render(nil); got != "" {
		t.Errorf("Nil composite should render empty, got %q", got)
	}
}

func TestFormatter_AppliesLineCaps(t *testing.T) {
	f := rag.NewFormatter(nil)

	var recent []rag.MessageRecord
	for i := 0; i < 12; i++ {
		recent = append(recent, record("Alice", strings.Repeat("x", i+1), "t"))
	}
	var relevant []rag.ScoredMessage
	for i := 0; i < 8; i++ {
		relevant = append(relevant, rag.ScoredMessage{
			MessageRecord:  record("Bob", strings.Repeat("y", i+1), "t"),
			RelevanceScore: 0.9,
		})
	}

	out := f.Render(&rag.CompositeResult{
		RelevantMessages: relevant,
		RecentMessages:   recent,
		Summary:          rag.ConversationSummary{TotalMessages: 20},
	})

	if strings.Count(out, "Alice: ") != 10 {
		t.Errorf("Recent block should keep the last 10 lines, got %d", strings.Count(out, "Alice: "))
	}
	// The last 10 of 12 means the two shortest lines are gone
	if strings.Contains(out, "Alice: x\n") {
		t.Error("Oldest recent entries should be dropped, not the newest")
	}
	if strings.Count(out, "Bob: ") != 5 {
		t.Errorf("Relevant block should keep the top 5 hits, got %d", strings.Count(out, "Bob: "))
	}
}
