package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-memory store implementation.
//
// It is unbounded: entries leave only by time-based eviction or
// caller-driven invalidation.
type MemoryStore struct {
	clock   clockwork.Clock
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates a new in-memory store using the real clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

// NewMemoryStoreWithClock creates a new in-memory store with a custom
// clock. Tests pass a clockwork.FakeClock to control freshness math.
func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]Entry),
	}
}

// Get retrieves the entry for key. Evicted entries are removed lazily
// and reported as a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	if entry.FreshnessAt(s.clock.Now()) == Evicted {
		s.mu.Lock()
		// Re-check under the write lock; a fresher write may have
		// landed between the two lock acquisitions.
		if cur, ok := s.entries[key]; ok && cur.WrittenAt.Equal(entry.WrittenAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return Entry{}, false
	}

	return entry, true
}

// Set stores a value unconditionally. cacheTime is raised to
// staleTime when smaller so the entry invariant holds.
func (s *MemoryStore) Set(_ context.Context, key string, value any, staleTime, cacheTime time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if cacheTime < staleTime {
		cacheTime = staleTime
	}

	s.mu.Lock()
	s.entries[key] = Entry{
		Value:      value,
		WrittenAt:  s.clock.Now(),
		StaleAfter: staleTime,
		EvictAfter: cacheTime,
	}
	s.mu.Unlock()

	return nil
}

// Invalidate removes the entry for key. Idempotent - no error on miss.
func (s *MemoryStore) Invalidate(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
	return nil
}

// Len reports the number of entries currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes all entries whose eviction window has elapsed and
// returns the number removed. Eviction is otherwise lazy on Get, so
// Sweep is an optional housekeeping call for long-lived processes.
func (s *MemoryStore) Sweep(_ context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.FreshnessAt(now) == Evicted {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
