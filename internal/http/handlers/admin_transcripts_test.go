package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
)

type fakeTranscripts struct {
	entries  []messaging.TranscriptEntry
	err      error
	identity string
	limit    int
}

func (f *fakeTranscripts) ListTranscript(_ context.Context, identity string, limit int) ([]messaging.TranscriptEntry, error) {
	f.identity = identity
	f.limit = limit
	return f.entries, f.err
}

type transcriptBody struct {
	Identity     string                      `json:"identity"`
	WhatsAppLink string                      `json:"whatsapp_link"`
	Messages     []messaging.TranscriptEntry `json:"messages"`
}

func transcriptsRouter(store transcriptReader) http.Handler {
	h := NewAdminTranscriptsHandler(store)
	r := chi.NewRouter()
	r.Get("/admin/transcripts/{identity}", h.Get)
	return r
}

func TestAdminTranscripts_Get(t *testing.T) {
	at := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeTranscripts{entries: []messaging.TranscriptEntry{
		{ID: 1, Identity: "966500000001", Direction: messaging.DirectionInbound, Kind: "text", Body: "hi", Status: "received", CreatedAt: at},
		{ID: 2, Identity: "966500000001", Direction: messaging.DirectionOutbound, Kind: "text", Body: "welcome", Status: "sent", CreatedAt: at.Add(time.Second)},
	}}

	rec := doRequest(t, transcriptsRouter(store), http.MethodGet, "/admin/transcripts/966500000001@c.us?limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[transcriptBody](t, rec)
	assert.Equal(t, "966500000001", body.Identity)
	assert.Equal(t, "https://wa.me/966500000001", body.WhatsAppLink)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "welcome", body.Messages[1].Body)
	assert.Equal(t, "966500000001", store.identity)
	assert.Equal(t, 20, store.limit)
}

func TestAdminTranscripts_Errors(t *testing.T) {
	rec := doRequest(t, transcriptsRouter(&fakeTranscripts{}), http.MethodGet, "/admin/transcripts/966500000001?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, transcriptsRouter(&fakeTranscripts{err: errors.New("connection refused")}), http.MethodGet, "/admin/transcripts/966500000001", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = doRequest(t, transcriptsRouter(nil), http.MethodGet, "/admin/transcripts/966500000001", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, transcriptsRouter(&fakeTranscripts{}), http.MethodGet, "/admin/transcripts/966500000001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[transcriptBody](t, rec).Messages)
}
