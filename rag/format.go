package rag

import (
	"fmt"
	"strings"
)

// Formatter renders a CompositeResult into a bounded text block for
// prompt injection. Output order is fixed: count header, recent block,
// relevant block. Most recent context sits closest to the top; background
// context is appended after. Downstream behavior depends on this ordering
// being reproducible.
type Formatter struct {
	// MaxRecent caps the recent-conversation block.
	MaxRecent int

	// MaxRelevant caps the relevant-past-messages block, applied before
	// the relevance floor.
	MaxRelevant int

	// MinRelevance drops hits at or below this score. The drop is silent;
	// low-scoring hits are noise, not errors.
	MinRelevance float64
}

// NewFormatter creates a Formatter from config limits. A nil config takes
// DefaultConfig.
func NewFormatter(config *Config) *Formatter {
	if config == nil {
		config = DefaultConfig
	}
	return &Formatter{
		MaxRecent:    config.MaxRecentLines,
		MaxRelevant:  config.MaxRelevantLines,
		MinRelevance: config.MinRelevance,
	}
}

// Render produces the formatted context block. Sections with no
// qualifying entries are omitted entirely, headers included. An empty
// composite renders as the empty string.
func (f *Formatter) Render(result *CompositeResult) string {
	if result == nil {
		return ""
	}

	var lines []string

	if result.Summary.TotalMessages > 0 {
		lines = append(lines, fmt.Sprintf("[Conversation has %d messages]", result.Summary.TotalMessages))
		lines = append(lines, "")
	}

	recent := result.RecentMessages
	if len(recent) > f.MaxRecent {
		recent = recent[len(recent)-f.MaxRecent:]
	}
	if len(recent) > 0 {
		lines = append(lines, "=== Recent Conversation ===")
		for _, m := range recent {
			lines = append(lines, formatLine(m))
		}
		lines = append(lines, "")
	}

	relevant := result.RelevantMessages
	if len(relevant) > f.MaxRelevant {
		relevant = relevant[:f.MaxRelevant]
	}
	var qualifying []ScoredMessage
	for _, m := range relevant {
		if m.RelevanceScore > f.MinRelevance {
			qualifying = append(qualifying, m)
		}
	}
	if len(qualifying) > 0 {
		lines = append(lines, "=== Relevant Past Messages ===")
		for _, m := range qualifying {
			lines = append(lines, formatLine(m.MessageRecord))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func formatLine(m MessageRecord) string {
	name := m.SenderName
	if name == "" {
		name = "Unknown"
	}
	return name + ": " + m.Content
}
