// Package contextstore keeps the last asset each user asked about, for a short
// time, so follow-up questions can be bound to it.
package contextstore

import (
	"context"
	"sync"
	"time"

	"market-bot/internal/domain"
)

// DefaultTTL is how long a context stays usable after its last write.
const DefaultTTL = 60 * time.Second

// IsExpired reports whether c is absent or older than ttl at now. It does not
// mutate anything.
func IsExpired(c *domain.ConversationContext, ttl time.Duration, now time.Time) bool {
	if c == nil {
		return true
	}
	return now.Sub(c.UpdatedAt) > ttl
}

// MemoryStore is a process-local context store. Expired entries are removed
// when they are read, or in bulk by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]domain.ConversationContext
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store. A non-positive ttl falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]domain.ConversationContext),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured expiry window.
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}

// Set replaces any entry for userID. Nothing is merged from the previous entry.
func (s *MemoryStore) Set(_ context.Context, userID string, c domain.ConversationContext) error {
	c.UserID = userID
	c.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = c
	return nil
}

// Get returns the live context for userID. A stale entry is deleted and
// reported as absent.
func (s *MemoryStore) Get(_ context.Context, userID string) (domain.ConversationContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.entries[userID]
	if !ok {
		return domain.ConversationContext{}, false, nil
	}
	if IsExpired(&c, s.ttl, s.now()) {
		delete(s.entries, userID)
		return domain.ConversationContext{}, false, nil
	}
	return c, true, nil
}

// Clear deletes the entry for userID if there is one.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, c := range s.entries {
		if IsExpired(&c, s.ttl, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, live or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
