package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory map before an inline sweep of
// expired stamps runs.
const DefaultMaxEntries = 65536

// Clock supplies the current time. Injectable so the suppression window is
// testable without sleeping.
type Clock func() time.Time

// MemoryStore keeps suppression stamps in a mutex-guarded map. Expired
// entries are reclaimed lazily: on re-acquire of the same key, or by a full
// sweep once the map hits its size bound.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]time.Time // key -> expiry deadline
	now        Clock
	maxEntries int
}

type MemoryOption func(*MemoryStore)

func WithClock(now Clock) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]time.Time),
		now:        time.Now,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if deadline, ok := s.entries[key]; ok && now.Before(deadline) {
		return false, nil
	}
	if len(s.entries) >= s.maxEntries {
		s.sweep(now)
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Len reports the number of stamps currently held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, deadline := range s.entries {
		if !now.Before(deadline) {
			delete(s.entries, k)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
