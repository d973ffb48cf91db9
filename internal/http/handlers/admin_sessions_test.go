package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type fakeSessions struct {
	live     map[string]support.Session
	ended    []string
	notified []bool
	startErr error
}

func newFakeSessions(list ...support.Session) *fakeSessions {
	f := &fakeSessions{live: make(map[string]support.Session)}
	for _, s := range list {
		f.live[s.ID] = s
	}
	return f
}

func (f *fakeSessions) StartCustomerService(_ context.Context, identity string, kind support.Kind) (support.Session, error) {
	if f.startErr != nil {
		return support.Session{}, f.startErr
	}
	s := support.Session{
		ID:        "4242",
		Identity:  identity,
		Kind:      kind,
		CreatedAt: sessionsNow,
		ExpiresAt: sessionsNow.Add(time.Hour),
	}
	f.live[s.ID] = s
	return s, nil
}

func (f *fakeSessions) EndSession(_ context.Context, id string, notify bool) (support.Session, error) {
	s, ok := f.live[id]
	if !ok {
		return support.Session{}, support.ErrSessionNotFound
	}
	delete(f.live, id)
	f.ended = append(f.ended, id)
	f.notified = append(f.notified, notify)
	return s, nil
}

func (f *fakeSessions) List() []support.Session {
	out := make([]support.Session, 0, len(f.live))
	for _, s := range f.live {
		out = append(out, s)
	}
	return out
}

func (f *fakeSessions) ListByIdentity(identity string) []support.Session {
	var out []support.Session
	for _, s := range f.live {
		if s.Identity == identity {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSessions) Get(id string) (support.Session, bool) {
	s, ok := f.live[id]
	return s, ok
}

var sessionsNow = time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)

func sessionsRouter(f *fakeSessions) http.Handler {
	h := NewAdminSessionsHandler(f, f, logging.Discard())
	h.now = func() time.Time { return sessionsNow }
	r := chi.NewRouter()
	r.Get("/admin/sessions", h.List)
	r.Post("/admin/sessions", h.Start)
	r.Get("/admin/sessions/{sessionID}", h.Get)
	r.Delete("/admin/sessions/{sessionID}", h.End)
	return r
}

type sessionList struct {
	Sessions []SessionView `json:"sessions"`
	Total    int           `json:"total"`
}

func TestAdminSessions_ListSortedWithRemaining(t *testing.T) {
	f := newFakeSessions(
		support.Session{ID: "2002", Identity: "966500000002", Kind: support.KindCustomer, CreatedAt: sessionsNow.Add(-5 * time.Minute), ExpiresAt: sessionsNow.Add(55 * time.Minute)},
		support.Session{ID: "1001", Identity: "966500000001", Kind: support.KindOperator, CreatedAt: sessionsNow.Add(-50 * time.Minute), ExpiresAt: sessionsNow.Add(10 * time.Minute)},
	)
	router := sessionsRouter(f)

	rec := doRequest(t, router, http.MethodGet, "/admin/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[sessionList](t, rec)
	require.Equal(t, 2, body.Total)
	assert.Equal(t, "1001", body.Sessions[0].ID)
	assert.Equal(t, 600, body.Sessions[0].RemainingSeconds)
	assert.Equal(t, "https://wa.me/966500000001", body.Sessions[0].WhatsAppLink)

	rec = doRequest(t, router, http.MethodGet, "/admin/sessions?identity=966500000002@s.whatsapp.net", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody[sessionList](t, rec)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "2002", body.Sessions[0].ID)
}

func TestAdminSessions_Get(t *testing.T) {
	f := newFakeSessions(support.Session{ID: "1001", Identity: "966500000001", ExpiresAt: sessionsNow.Add(time.Minute)})
	router := sessionsRouter(f)

	rec := doRequest(t, router, http.MethodGet, "/admin/sessions/1001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, decodeBody[SessionView](t, rec).RemainingSeconds)

	rec = doRequest(t, router, http.MethodGet, "/admin/sessions/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSessions_StartOpensOperatorSession(t *testing.T) {
	f := newFakeSessions()
	router := sessionsRouter(f)

	rec := doRequest(t, router, http.MethodPost, "/admin/sessions", `{"identity":"+966500000003"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decodeBody[SessionView](t, rec)
	assert.Equal(t, "4242", view.ID)
	assert.Equal(t, "966500000003", view.Identity)
	assert.Equal(t, support.KindOperator, view.Kind)
}

func TestAdminSessions_StartValidation(t *testing.T) {
	router := sessionsRouter(newFakeSessions())

	for _, body := range []string{``, `{"identity":""}`, `{"identity":"12036304@g.us"}`, `{"who":"x"}`} {
		rec := doRequest(t, router, http.MethodPost, "/admin/sessions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAdminSessions_StartCodeSpaceExhausted(t *testing.T) {
	f := newFakeSessions()
	f.startErr = support.ErrCodeSpaceExhausted
	rec := doRequest(t, sessionsRouter(f), http.MethodPost, "/admin/sessions", `{"identity":"966500000003"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, codeUnavailable, errorCode(t, rec))
}

func TestAdminSessions_StartAfterShutdown(t *testing.T) {
	f := newFakeSessions()
	f.startErr = conversation.ErrExecutorClosed
	rec := doRequest(t, sessionsRouter(f), http.MethodPost, "/admin/sessions", `{"identity":"966500000003"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, codeUnavailable, errorCode(t, rec))
}

func TestAdminSessions_End(t *testing.T) {
	f := newFakeSessions(
		support.Session{ID: "1001", Identity: "966500000001"},
		support.Session{ID: "1002", Identity: "966500000002"},
	)
	router := sessionsRouter(f)

	rec := doRequest(t, router, http.MethodDelete, "/admin/sessions/1001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/admin/sessions/1002?notify=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"1001", "1002"}, f.ended)
	assert.Equal(t, []bool{true, false}, f.notified)

	rec = doRequest(t, router, http.MethodDelete, "/admin/sessions/1001", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/admin/sessions/1001?notify=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
