package core

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

const (
	DefaultMaxHistory = 20
	DefaultIdleTTL    = 45 * time.Minute

	frustrationGibberishStreak = 2
	frustrationMessageCount    = 10
	frustrationSessionAge      = 15 * time.Minute

	contextShardCount = 16
)

// ConversationContext is the working memory of one chat session. History holds
// "User: ..." and "Bot: ..." lines and only ever loses whole exchanges.
type ConversationContext struct {
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	LastActivity    time.Time `json:"last_activity"`
	MessageCount    int       `json:"message_count"`
	GibberishCount  int       `json:"gibberish_count"`
	LastUserMessage string    `json:"last_user_message"`
	LastBotResponse string    `json:"last_bot_response"`
	History         []string  `json:"history"`

	maxHistory int
}

func newConversationContext(sessionID string, now time.Time, maxHistory int) *ConversationContext {
	return &ConversationContext{
		SessionID:    sessionID,
		StartedAt:    now,
		LastActivity: now,
		History:      []string{},
		maxHistory:   maxHistory,
	}
}

// Append adds one history line, evicting the oldest exchange while over capacity.
func (c *ConversationContext) Append(speaker, text string) {
	c.History = append(c.History, speaker+": "+text)
	limit := c.maxHistory
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	for len(c.History) > limit {
		c.History = c.History[2:]
	}
}

func (c *ConversationContext) IncrementMessageCount() { c.MessageCount++ }

func (c *ConversationContext) IncrementGibberishCount() { c.GibberishCount++ }

func (c *ConversationContext) ResetGibberishCount() { c.GibberishCount = 0 }

// SetLastTurn records the exchange and appends both lines to history.
func (c *ConversationContext) SetLastTurn(userMsg, botMsg string) {
	c.LastUserMessage = userMsg
	c.LastBotResponse = botMsg
	c.Append("User", userMsg)
	c.Append("Bot", botMsg)
}

// ShowsFrustration reports whether the session has gone on long enough, or
// badly enough, that a human should be offered.
func (c *ConversationContext) ShowsFrustration(now time.Time) bool {
	return c.GibberishCount > frustrationGibberishStreak ||
		c.MessageCount > frustrationMessageCount ||
		now.Sub(c.StartedAt) > frustrationSessionAge
}

func (c *ConversationContext) clone() *ConversationContext {
	cp := *c
	cp.History = append([]string(nil), c.History...)
	return &cp
}

// ContextStore holds per-session contexts. Update serializes callers of the
// same session and runs fn against a context that is created on first use;
// changes are kept only when fn returns nil.
type ContextStore interface {
	Update(ctx context.Context, sessionID string, fn func(*ConversationContext) error) error
	Get(ctx context.Context, sessionID string) (*ConversationContext, error)
	Delete(ctx context.Context, sessionID string) error
}

type contextEntry struct {
	mu   sync.Mutex
	refs int // Guarded by the shard lock
	cc   *ConversationContext
}

type contextShard struct {
	mu      sync.Mutex
	entries map[string]*contextEntry
}

// MemoryContextStore keeps contexts in process memory. Sessions hash onto
// shards and each session has its own lock, so unrelated sessions never wait
// on each other.
type MemoryContextStore struct {
	shards     [contextShardCount]*contextShard
	idleTTL    time.Duration
	maxHistory int
	now        func() time.Time
}

func NewMemoryContextStore(idleTTL time.Duration, maxHistory int) *MemoryContextStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	s := &MemoryContextStore{idleTTL: idleTTL, maxHistory: maxHistory, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &contextShard{entries: make(map[string]*contextEntry)}
	}
	return s
}

func (s *MemoryContextStore) shardFor(sessionID string) *contextShard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return s.shards[h.Sum32()%contextShardCount]
}

// acquire pins the session entry so the sweeper leaves it alone.
func (s *MemoryContextStore) acquire(sessionID string) (*contextShard, *contextEntry) {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	e, ok := shard.entries[sessionID]
	if !ok {
		e = &contextEntry{cc: newConversationContext(sessionID, s.now(), s.maxHistory)}
		shard.entries[sessionID] = e
	}
	e.refs++
	return shard, e
}

func (s *MemoryContextStore) release(shard *contextShard, e *contextEntry) {
	shard.mu.Lock()
	e.refs--
	shard.mu.Unlock()
}

func (s *MemoryContextStore) Update(ctx context.Context, sessionID string, fn func(*ConversationContext) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard, e := s.acquire(sessionID)
	defer s.release(shard, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.cc.clone()
	if err := fn(working); err != nil {
		return err
	}
	working.LastActivity = s.now()
	e.cc = working
	return nil
}

// Get returns a copy of the session context, or nil when there is none.
func (s *MemoryContextStore) Get(ctx context.Context, sessionID string) (*ConversationContext, error) {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	e, ok := shard.entries[sessionID]
	if ok {
		e.refs++
	}
	shard.mu.Unlock()
	if !ok {
		return nil, nil
	}
	defer s.release(shard, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cc.clone(), nil
}

func (s *MemoryContextStore) Delete(ctx context.Context, sessionID string) error {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	delete(shard.entries, sessionID)
	shard.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryContextStore) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		n += len(shard.entries)
		shard.mu.Unlock()
	}
	return n
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
// Sessions with a caller inside Update are skipped.
func (s *MemoryContextStore) Sweep(now time.Time) int {
	removed := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for id, e := range shard.entries {
			if e.refs > 0 {
				continue
			}
			if now.Sub(e.cc.LastActivity) > s.idleTTL {
				delete(shard.entries, id)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (s *MemoryContextStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.Printf("Context sweep evicted %d idle sessions", n)
			}
		}
	}
}
