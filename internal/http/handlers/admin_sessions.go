package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/http/middleware"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type sessionController interface {
	StartCustomerService(ctx context.Context, identity string, kind support.Kind) (support.Session, error)
	EndSession(ctx context.Context, id string, notify bool) (support.Session, error)
}

type sessionLister interface {
	List() []support.Session
	ListByIdentity(identity string) []support.Session
	Get(id string) (support.Session, bool)
}

// AdminSessionsHandler exposes live customer-service sessions.
type AdminSessionsHandler struct {
	engine   sessionController
	sessions sessionLister
	logger   *logging.Logger
	now      func() time.Time
}

// NewAdminSessionsHandler creates a new admin sessions handler.
func NewAdminSessionsHandler(engine sessionController, sessions sessionLister, logger *logging.Logger) *AdminSessionsHandler {
	if engine == nil || sessions == nil {
		panic("handlers: session engine and registry are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{engine: engine, sessions: sessions, logger: logger, now: time.Now}
}

// SessionView adds the remaining lifetime to a session.
type SessionView struct {
	support.Session
	RemainingSeconds int    `json:"remaining_seconds"`
	WhatsAppLink     string `json:"whatsapp_link"`
}

type startSessionRequest struct {
	Identity string `json:"identity"`
}

func (h *AdminSessionsHandler) view(s support.Session) SessionView {
	return SessionView{
		Session:          s,
		RemainingSeconds: int(s.Remaining(h.now()).Seconds()),
		WhatsAppLink:     messaging.ChatLink(s.Identity),
	}
}

// List handles GET /admin/sessions, optionally filtered by ?identity=.
func (h *AdminSessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var list []support.Session
	if identity := strings.TrimSpace(r.URL.Query().Get("identity")); identity != "" {
		list = h.sessions.ListByIdentity(messaging.NormalizeIdentity(identity))
	} else {
		list = h.sessions.List()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	views := make([]SessionView, 0, len(list))
	for _, s := range list {
		views = append(views, h.view(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views, "total": len(views)})
}

// Get handles GET /admin/sessions/{sessionID}.
func (h *AdminSessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeDomainError(w, support.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

// Start handles POST /admin/sessions: staff take over a conversation.
func (h *AdminSessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	identity := messaging.NormalizeIdentity(req.Identity)
	if identity == "" || messaging.IsGroupChat(req.Identity) {
		writeError(w, http.StatusBadRequest, codeValidation, "identity is required")
		return
	}

	s, err := h.engine.StartCustomerService(r.Context(), identity, support.KindOperator)
	if err != nil {
		h.logger.Error("failed to start support session", "identity", identity, "error", err)
		writeDomainError(w, err)
		return
	}
	h.logger.Info("admin opened support session",
		"session_id", s.ID,
		"identity", identity,
		"operator", middleware.AdminSubject(r.Context()),
	)
	writeJSON(w, http.StatusCreated, h.view(s))
}

// End handles DELETE /admin/sessions/{sessionID}. ?notify=false closes the
// session without telling the customer.
func (h *AdminSessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	notify := true
	if raw := r.URL.Query().Get("notify"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "notify must be a boolean")
			return
		}
		notify = v
	}

	id := chi.URLParam(r, "sessionID")
	s, err := h.engine.EndSession(r.Context(), id, notify)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("admin ended support session",
		"session_id", s.ID,
		"identity", s.Identity,
		"notify", notify,
		"operator", middleware.AdminSubject(r.Context()),
	)
	writeJSON(w, http.StatusOK, h.view(s))
}
