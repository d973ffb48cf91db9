package reviews

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps reviews in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	reviews map[string]Review
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reviews: make(map[string]Review), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, r Review) error {
	if r.ID == "" {
		return fmt.Errorf("reviews: review id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	s.reviews[r.ID] = r
	return nil
}

func (s *MemoryStore) AttachFeedback(_ context.Context, id, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	r.Feedback = feedback
	r.UpdatedAt = s.now().UTC()
	s.reviews[id] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return Review{}, fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	return r, nil
}

// All returns every review, oldest first.
func (s *MemoryStore) All() []Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
