package rag

// MessageRecord is one indexed chat message. Records are append-only:
// IndexPosition is assigned when the record enters the ledger and never
// changes afterwards.
type MessageRecord struct {
	MessageID     string `json:"message_id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name"`
	Content       string `json:"content"`
	Timestamp     string `json:"timestamp"`
	IndexPosition int    `json:"index_position"`
}

// IncomingMessage is a message that has not been indexed yet.
// Timestamp is optional; the store assigns the current UTC time when empty.
type IncomingMessage struct {
	SenderID   string
	SenderName string
	Content    string
	Timestamp  string
}

// ScoredMessage pairs a record with its relevance to a query.
// Scores are in (0, 1], higher = more similar.
type ScoredMessage struct {
	MessageRecord
	RelevanceScore float64 `json:"relevance_score"`
}

// ConversationSummary holds aggregate statistics for one conversation.
// FirstMessage and LastMessage are timestamps; both are empty when the
// conversation has no records.
type ConversationSummary struct {
	TotalMessages int
	Participants  map[string]int
	FirstMessage  string
	LastMessage   string
}

// CompositeResult is the output of a hybrid query: semantic hits, the
// recency window (chronological, oldest first) and the summary. It is
// ephemeral and never persisted. The composite defines no precedence
// between its parts; ordering is the Formatter's job.
type CompositeResult struct {
	RelevantMessages []ScoredMessage
	RecentMessages   []MessageRecord
	Summary          ConversationSummary
}

// Config holds store and formatter tuning.
type Config struct {
	// TopK is the default number of semantic hits per query.
	TopK int

	// RecentLimit is the default recency window size.
	RecentLimit int

	// MinRelevance is the formatter's relevance floor. Hits at or below
	// it are dropped from the relevant block.
	// Note: local models (all-MiniLM-L6-v2) produce lower scores than
	// hosted ones; 0.3 is tuned for the former.
	MinRelevance float64

	// MaxRecentLines caps the recent block in formatted output.
	MaxRecentLines int

	// MaxRelevantLines caps the relevant block in formatted output.
	MaxRelevantLines int
}

// DefaultConfig returns sensible defaults. The floor and the line caps
// encode a precision/noise tradeoff; change them only with evidence.
var DefaultConfig = &Config{
	TopK:             5,
	RecentLimit:      10,
	MinRelevance:     0.3,
	MaxRecentLines:   10,
	MaxRelevantLines: 5,
}
