package support

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// KeySessions is the document live sessions are snapshotted to.
const KeySessions = "support_sessions"

// ExpireFunc is called from the timer goroutine when a session's lifetime
// runs out. The registry does not remove the session itself; the callee
// decides how to end it, normally via Expire.
type ExpireFunc func(Session)

type entry struct {
	session Session
	timer   *clock.Timer
}

// Registry owns live sessions and their expiry timers.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	clock    clock.Clock
	ttl      time.Duration
	onExpire ExpireFunc
	newCode  func() string

	persistMu sync.Mutex
	store     docstore.Store
	logger    *logging.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock sets the time source and timer factory.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newCode = fn
		}
	}
}

// WithStore snapshots live sessions to store after every change.
func WithStore(store docstore.Store) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns an empty Registry with a two hour session lifetime.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		clock:    clock.Real(),
		ttl:      2 * time.Hour,
		newCode:  randomCode,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnExpire sets the expiry handler. Without one, expired sessions are ended
// silently.
func (r *Registry) OnExpire(fn ExpireFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

func randomCode() string {
	return strconv.Itoa(minCode + rand.IntN(maxCode-minCode+1))
}

// Start opens a session for identity under a code no live session holds.
func (r *Registry) Start(ctx context.Context, identity string, kind Kind) (Session, error) {
	r.mu.Lock()
	code, err := r.freeCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return Session{}, err
	}
	now := r.clock.Now().UTC()
	s := Session{
		ID:        code,
		Identity:  identity,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.installLocked(s, r.ttl)
	r.mu.Unlock()

	r.persist(ctx)
	r.logger.Info("support session started", "session_id", s.ID, "identity", identity, "kind", string(kind))
	return s, nil
}

// End closes a live session and cancels its expiry timer. Ending an unknown
// or already closed code returns ErrSessionNotFound and changes nothing.
func (r *Registry) End(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.timer.Stop()
	delete(r.sessions, id)
	r.mu.Unlock()

	r.persist(ctx)
	return e.session, nil
}

// Expire ends s only if it is still the live session under its code. It
// guards against a timer that fired just before a manual End, and against a
// code that was reused by a newer session in between.
func (r *Registry) Expire(ctx context.Context, s Session) (Session, error) {
	r.mu.Lock()
	e, ok := r.sessions[s.ID]
	if !ok || !e.session.CreatedAt.Equal(s.CreatedAt) || e.session.Identity != s.Identity {
		r.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	e.timer.Stop()
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	r.persist(ctx)
	return e.session, nil
}

// Get returns the live session with code id.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// ListByIdentity returns the identity's live sessions, oldest first.
func (r *Registry) ListByIdentity(identity string) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, e := range r.sessions {
		if e.session.Identity == identity {
			out = append(out, e.session)
		}
	}
	sortSessions(out)
	return out
}

// List returns every live session, oldest first.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type sessionsDoc struct {
	Sessions []Session `json:"sessions"`
}

// Restore reloads the snapshot written by a previous process and re-arms the
// timers of sessions that have not yet expired. It returns the sessions now
// live. Already-expired entries are dropped.
func (r *Registry) Restore(ctx context.Context) ([]Session, error) {
	if r.store == nil {
		return nil, nil
	}
	var doc sessionsDoc
	if _, err := docstore.ReadJSON(ctx, r.store, KeySessions, &doc); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	var restored []Session
	r.mu.Lock()
	for _, s := range doc.Sessions {
		remaining := s.Remaining(now)
		if remaining <= 0 {
			continue
		}
		if _, taken := r.sessions[s.ID]; taken {
			continue
		}
		r.installLocked(s, remaining)
		restored = append(restored, s)
	}
	r.mu.Unlock()

	r.persist(ctx)
	sortSessions(restored)
	return restored, nil
}

func (r *Registry) installLocked(s Session, after time.Duration) {
	e := &entry{session: s}
	e.timer = r.clock.AfterFunc(after, func() { r.fire(s) })
	r.sessions[s.ID] = e
}

func (r *Registry) fire(s Session) {
	r.mu.Lock()
	e, ok := r.sessions[s.ID]
	live := ok && e.session.CreatedAt.Equal(s.CreatedAt)
	handler := r.onExpire
	r.mu.Unlock()
	if !live {
		return
	}

	r.logger.Info("support session expired", "session_id", s.ID, "identity", s.Identity)
	if handler == nil {
		_, _ = r.Expire(context.Background(), s)
		return
	}
	handler(s)
}

func (r *Registry) freeCodeLocked() (string, error) {
	if len(r.sessions) >= maxCode-minCode+1 {
		return "", ErrCodeSpaceExhausted
	}
	for attempt := 0; attempt < 64; attempt++ {
		code := r.newCode()
		if _, taken := r.sessions[code]; !taken && validCode(code) {
			return code, nil
		}
	}
	// Dense registry: fall back to scanning from a random offset.
	start := rand.IntN(maxCode - minCode + 1)
	for i := 0; i <= maxCode-minCode; i++ {
		code := strconv.Itoa(minCode + (start+i)%(maxCode-minCode+1))
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func validCode(code string) bool {
	n, err := strconv.Atoi(code)
	return err == nil && n >= minCode && n <= maxCode
}

func (r *Registry) snapshotLocked() []Session {
	out := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	sortSessions(out)
	return out
}

func (r *Registry) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	doc := sessionsDoc{Sessions: r.snapshotLocked()}
	r.mu.Unlock()

	if err := docstore.WriteJSON(ctx, r.store, KeySessions, doc); err != nil {
		r.logger.Warn("failed to persist support sessions", "error", err)
	}
}

func sortSessions(list []Session) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
