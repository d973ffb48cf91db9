package conversation

import (
	"sync"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/clock"
)

// Entry is a snapshot of one identity's conversation.
type Entry struct {
	State        State
	Payload      Payload
	LastActivity time.Time
	Language     string
	SubmittedAt  time.Time
}

type record struct {
	Entry
	feedbackTimer *clock.Timer
}

// Store maps identities to their conversation. It is safe for concurrent
// use; the dispatcher still guarantees a single writer per identity.
//
// Entering MainMenu or Submitted, or removing the binding, always discards
// the pending payload and stops the identity's feedback timer.
type Store struct {
	mu      sync.Mutex
	entries map[string]*record
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*record)}
}

// Get returns a copy of the identity's entry.
func (s *Store) Get(identity string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[identity]
	if !ok {
		return Entry{}, false
	}
	e := r.Entry
	e.Payload = e.Payload.clone()
	return e, true
}

// Set binds identity to state with payload. now stamps SubmittedAt when the
// state is Submitted.
func (s *Store) Set(identity string, state State, payload Payload, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(identity)
	r.State = state
	r.Payload = payload.clone()
	if state.Kind == StateSubmitted {
		r.SubmittedAt = now
	}
	if state.clearsPayload() {
		r.Payload = Payload{}
		r.feedbackTimer.Stop()
		r.feedbackTimer = nil
	}
}

// Touch records activity for an existing binding.
func (s *Store) Touch(identity string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.entries[identity]; ok {
		r.LastActivity = at
	}
}

// SetLanguage records the identity's preferred language, creating no binding.
func (s *Store) SetLanguage(identity, lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.entries[identity]; ok {
		r.Language = lang
	}
}

// Language returns the identity's preferred language if one was recorded.
func (s *Store) Language(identity string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[identity]
	if !ok || r.Language == "" {
		return "", false
	}
	return r.Language, true
}

// SetFeedbackTimer hands the identity's feedback timer to the store,
// stopping any previous one. It reports false, and stops t, when the
// identity is no longer bound.
func (s *Store) SetFeedbackTimer(identity string, t *clock.Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[identity]
	if !ok {
		t.Stop()
		return false
	}
	r.feedbackTimer.Stop()
	r.feedbackTimer = t
	return true
}

// StopFeedbackTimer cancels the identity's feedback timer. It reports
// whether a timer was pending.
func (s *Store) StopFeedbackTimer(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[identity]
	if !ok || r.feedbackTimer == nil {
		return false
	}
	stopped := r.feedbackTimer.Stop()
	r.feedbackTimer = nil
	return stopped
}

// Remove drops the binding and its timers.
func (s *Store) Remove(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.entries[identity]; ok {
		r.feedbackTimer.Stop()
		delete(s.entries, identity)
	}
}

// Len reports how many identities are bound.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CountByState tallies bindings per state kind.
func (s *Store) CountByState() map[StateKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[StateKind]int)
	for _, r := range s.entries {
		out[r.State.Kind]++
	}
	return out
}

func (s *Store) recordLocked(identity string) *record {
	r, ok := s.entries[identity]
	if !ok {
		r = &record{}
		s.entries[identity] = r
	}
	return r
}
