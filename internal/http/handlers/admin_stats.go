package handlers

import (
	"net/http"

	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
)

type statsSource interface {
	Stats() conversation.Stats
}

// AdminStatsHandler reports live conversation counts.
type AdminStatsHandler struct {
	source statsSource
}

func NewAdminStatsHandler(source statsSource) *AdminStatsHandler {
	if source == nil {
		panic("handlers: stats source cannot be nil")
	}
	return &AdminStatsHandler{source: source}
}

// Get handles GET /admin/stats.
func (h *AdminStatsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Stats())
}
