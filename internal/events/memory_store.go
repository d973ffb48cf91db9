package events

import (
	"context"
	"sync"
	"time"
)

// MemoryProcessedStore is the single-process variant of RedisProcessedStore.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryProcessedStore creates a store; a non-positive ttl uses 24h.
func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &MemoryProcessedStore{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// MarkProcessed returns true the first time an id is seen within the TTL.
func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := provider + ":" + eventID
	if expires, ok := s.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}

// Prune drops expired ids and reports how many went.
func (s *MemoryProcessedStore) Prune(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now()), nil
}

func (s *MemoryProcessedStore) pruneLocked(now time.Time) int64 {
	var n int64
	for key, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, key)
			n++
		}
	}
	return n
}
