package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
)

type transcriptReader interface {
	ListTranscript(ctx context.Context, identity string, limit int) ([]messaging.TranscriptEntry, error)
}

// AdminTranscriptsHandler serves stored conversation history.
type AdminTranscriptsHandler struct {
	store transcriptReader
}

func NewAdminTranscriptsHandler(store transcriptReader) *AdminTranscriptsHandler {
	return &AdminTranscriptsHandler{store: store}
}

// Get handles GET /admin/transcripts/{identity}?limit=.
func (h *AdminTranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "transcripts are not configured")
		return
	}
	identity := messaging.NormalizeIdentity(chi.URLParam(r, "identity"))
	if identity == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "identity is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.store.ListTranscript(r.Context(), identity, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []messaging.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":      identity,
		"whatsapp_link": messaging.ChatLink(identity),
		"messages":      entries,
	})
}
