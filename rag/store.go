package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sparkmatch/chatrag/rag/index/flat"
	"github.com/sparkmatch/chatrag/rag/storage"
)

// Store is the single point of truth for locating, lazily materializing,
// caching and persisting the per-key (vector index, message ledger) pair.
//
// Concurrent operations on different keys are independent; writes to the
// same key are serialized by a per-conversation mutex, though the caller
// remains responsible for ordering its own writes per key.
type Store struct {
	backend  storage.Backend
	embedder Embedder
	config   *Config

	mu     sync.RWMutex
	convos map[string]*conversation
}

// conversation is the in-memory state for one key. Its mutex serializes
// all access to the pair; loading happens under it so a slow disk read on
// one key never blocks another.
type conversation struct {
	mu      sync.Mutex
	loaded  bool
	index   *flat.Index
	records []MessageRecord
	ids     map[string]struct{}
}

// New creates a Store. A nil config takes DefaultConfig.
func New(backend storage.Backend, embedder Embedder, config *Config) *Store {
	if config == nil {
		config = DefaultConfig
	}
	return &Store{
		backend:  backend,
		embedder: embedder,
		config:   config,
		convos:   make(map[string]*conversation),
	}
}

// Config returns the store's configuration.
func (s *Store) Config() *Config {
	return s.config
}

// conversation returns the cache entry for key, creating an unloaded one
// if needed. No I/O happens here; the store lock is held for map access only.
func (s *Store) conversation(key string) *conversation {
	s.mu.RLock()
	c, ok := s.convos[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if c, ok := s.convos[key]; ok {
		return c
	}
	c = &conversation{ids: make(map[string]struct{})}
	s.convos[key] = c
	return c
}

// ensureLoaded materializes the pair from durable storage on first access.
// Caller must hold c.mu.
func (s *Store) ensureLoaded(ctx context.Context, key string, c *conversation) error {
	if c.loaded {
		return nil
	}

	dim := s.embedder.Dimensions()
	ix := flat.New(dim)

	vecData, ok, err := s.backend.ReadVectors(ctx, key)
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	if ok {
		ix, err = flat.Unmarshal(vecData)
		if err != nil {
			return fmt.Errorf("decode vectors: %w", err)
		}
		if ix.Dim() != dim {
			return fmt.Errorf("stored index dimension %d does not match embedder dimension %d", ix.Dim(), dim)
		}
	}

	ledgerData, ok, err := s.backend.ReadLedger(ctx, key)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	var records []MessageRecord
	if ok {
		if err := json.Unmarshal(ledgerData, &records); err != nil {
			return fmt.Errorf("decode ledger: %w", err)
		}
	}

	// A crash between the two artifact writes leaves one of them a record
	// ahead. Reconcile to the shorter prefix: the state as of the last
	// complete flush.
	if len(records) > ix.Count() {
		log.Printf("[RAG] Ledger for %s ahead of index (%d > %d), truncating", key, len(records), ix.Count())
		records = records[:ix.Count()]
	}
	if ix.Count() > len(records) {
		log.Printf("[RAG] Index for %s ahead of ledger (%d > %d), truncating", key, ix.Count(), len(records))
		ix.Truncate(len(records))
	}

	ids := make(map[string]struct{}, len(records))
	for i := range records {
		records[i].IndexPosition = i
		ids[records[i].MessageID] = struct{}{}
	}

	c.index = ix
	c.records = records
	c.ids = ids
	c.loaded = true
	if len(records) > 0 {
		log.Printf("[RAG] Loaded conversation %s: %d messages", key, len(records))
	}
	return nil
}

// AddMessage indexes one chat message. It returns false without side
// effects for empty/whitespace content and for duplicates (same sender,
// content and timestamp). On success the updated pair is durable before
// the call returns.
func (s *Store) AddMessage(ctx context.Context, key, senderID, senderName, content, timestamp string) (bool, error) {
	if strings.TrimSpace(content) == "" {
		return false, nil
	}

	c := s.conversation(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ensureLoaded(ctx, key, c); err != nil {
		return false, err
	}

	if timestamp == "" {
		timestamp = nowTimestamp()
	}
	id := MessageID(senderID, content, timestamp)
	if _, dup := c.ids[id]; dup {
		return false, nil
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return false, fmt.Errorf("embed message: %w", err)
	}

	rec := MessageRecord{
		MessageID:  id,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Timestamp:  timestamp,
	}
	if err := s.appendAndPersist(ctx, key, c, []MessageRecord{rec}, [][]float32{vec}); err != nil {
		return false, err
	}
	return true, nil
}

// AddMessages indexes a batch of messages, applying the same empty-content
// and dedup rules per record (including duplicates within the batch).
// Surviving records are embedded in one batch call and persisted once.
// Returns the number actually inserted.
func (s *Store) AddMessages(ctx context.Context, key string, msgs []IncomingMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	c := s.conversation(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ensureLoaded(ctx, key, c); err != nil {
		return 0, err
	}

	var recs []MessageRecord
	var texts []string
	pending := make(map[string]struct{})
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		ts := m.Timestamp
		if ts == "" {
			ts = nowTimestamp()
		}
		id := MessageID(m.SenderID, m.Content, ts)
		if _, dup := c.ids[id]; dup {
			continue
		}
		if _, dup := pending[id]; dup {
			continue
		}
		pending[id] = struct{}{}

		name := m.SenderName
		if name == "" {
			name = "Unknown"
		}
		recs = append(recs, MessageRecord{
			MessageID:  id,
			SenderID:   m.SenderID,
			SenderName: name,
			Content:    m.Content,
			Timestamp:  ts,
		})
		texts = append(texts, m.Content)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}

	if err := s.appendAndPersist(ctx, key, c, recs, vecs); err != nil {
		return 0, err
	}
	log.Printf("[RAG] Indexed %d of %d messages for %s", len(recs), len(msgs), key)
	return len(recs), nil
}

// appendAndPersist is the single mutation point for the pair: it appends
// records and vectors together, persists both artifacts, and rolls the
// in-memory state back if persistence fails so the cache never runs ahead
// of durable storage. Caller must hold c.mu.
func (s *Store) appendAndPersist(ctx context.Context, key string, c *conversation, recs []MessageRecord, vecs [][]float32) error {
	base := len(c.records)
	if err := c.index.Insert(vecs); err != nil {
		return fmt.Errorf("index insert: %w", err)
	}
	for i := range recs {
		recs[i].IndexPosition = base + i
		c.records = append(c.records, recs[i])
		c.ids[recs[i].MessageID] = struct{}{}
	}

	if err := s.persist(ctx, key, c); err != nil {
		c.index.Truncate(base)
		c.records = c.records[:base]
		for i := range recs {
			delete(c.ids, recs[i].MessageID)
		}
		return err
	}
	return nil
}

// persist writes both artifacts, vectors first. A crash between the two
// writes is repaired on the next load (see ensureLoaded).
func (s *Store) persist(ctx context.Context, key string, c *conversation) error {
	if err := s.backend.WriteVectors(ctx, key, c.index.Marshal()); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	data, err := json.Marshal(c.records)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.backend.WriteLedger(ctx, key, data); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Search returns up to topK messages semantically closest to query,
// most similar first. An empty or unknown conversation yields an empty
// result, not an error.
func (s *Store) Search(ctx context.Context, key, query string, topK int) ([]ScoredMessage, error) {
	c := s.conversation(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ensureLoaded(ctx, key, c); err != nil {
		return nil, err
	}
	if len(c.records) == 0 || topK <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := c.index.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]ScoredMessage, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(c.records) {
			continue
		}
		results = append(results, ScoredMessage{
			MessageRecord:  c.records[h.Position],
			RelevanceScore: flat.Relevance(h.Distance),
		})
	}
	return results, nil
}

// Recent returns the limit most recent records in chronological order,
// oldest first. Ordering is by timestamp with ties broken by insertion
// order.
func (s *Store) Recent(ctx context.Context, key string, limit int) ([]MessageRecord, error) {
	c := s.conversation(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ensureLoaded(ctx, key, c); err != nil {
		return nil, err
	}
	return recentWindow(c.records, limit), nil
}

// Summary aggregates the conversation in one pass.
func (s *Store) Summary(ctx context.Context, key string) (ConversationSummary, error) {
	c := s.conversation(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ensureLoaded(ctx, key, c); err != nil {
		return ConversationSummary{}, err
	}
	return summarize(c.records), nil
}

// Purge removes all durable and cached state for key. Purging a
// nonexistent key is not an error; a subsequent insert starts a fresh
// sequence at position zero.
func (s *Store) Purge(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.convos, key)
	s.mu.Unlock()

	if err := s.backend.Purge(ctx, key); err != nil {
		return fmt.Errorf("purge %s: %w", key, err)
	}
	log.Printf("[RAG] Purged conversation %s", key)
	return nil
}

func recentWindow(records []MessageRecord, limit int) []MessageRecord {
	if limit <= 0 || len(records) == 0 {
		return nil
	}
	sorted := make([]MessageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

func summarize(records []MessageRecord) ConversationSummary {
	sum := ConversationSummary{Participants: make(map[string]int)}
	for _, r := range records {
		sum.TotalMessages++
		name := r.SenderName
		if name == "" {
			name = "Unknown"
		}
		sum.Participants[name]++
		if sum.FirstMessage == "" || r.Timestamp < sum.FirstMessage {
			sum.FirstMessage = r.Timestamp
		}
		if r.Timestamp >= sum.LastMessage {
			sum.LastMessage = r.Timestamp
		}
	}
	return sum
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
