package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/http/middleware"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// AdminOrdersHandler lets staff inspect and move orders through their
// lifecycle. Status changes go through orders.Service so customers are
// notified exactly as when the bot itself changes an order.
type AdminOrdersHandler struct {
	orders *orders.Service
	logger *logging.Logger
}

// NewAdminOrdersHandler creates a new admin orders handler.
func NewAdminOrdersHandler(svc *orders.Service, logger *logging.Logger) *AdminOrdersHandler {
	if svc == nil {
		panic("handlers: order service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminOrdersHandler{orders: svc, logger: logger}
}

// OrderView is an order plus links staff use to reach the customer.
type OrderView struct {
	orders.Order
	WhatsAppNumber string `json:"whatsapp_number"`
	WhatsAppLink   string `json:"whatsapp_link"`
}

// ListOrdersResponse wraps an order listing.
type ListOrdersResponse struct {
	Orders []OrderView `json:"orders"`
	Total  int         `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func newOrderView(o orders.Order) OrderView {
	return OrderView{
		Order:          o,
		WhatsAppNumber: messaging.NormalizeIdentity(o.Identity),
		WhatsAppLink:   messaging.ChatLink(o.Identity),
	}
}

func (h *AdminOrdersHandler) filter(r *http.Request) (orders.Filter, error) {
	var f orders.Filter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := orders.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	if identity := strings.TrimSpace(r.URL.Query().Get("identity")); identity != "" {
		f.Identity = messaging.NormalizeIdentity(identity)
	}
	return f, nil
}

// List handles GET /admin/orders.
func (h *AdminOrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.Ledger().List)
}

// ListArchived handles GET /admin/orders/archive.
func (h *AdminOrdersHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.Ledger().ListArchived)
}

func (h *AdminOrdersHandler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, f orders.Filter) ([]orders.Order, error)) {
	f, err := h.filter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	list, err := fetch(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		writeDomainError(w, err)
		return
	}
	views := make([]OrderView, 0, len(list))
	for _, o := range list {
		views = append(views, newOrderView(o))
	}
	writeJSON(w, http.StatusOK, ListOrdersResponse{Orders: views, Total: len(views)})
}

// Get handles GET /admin/orders/{orderID}. Archived orders are found too.
func (h *AdminOrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Ledger().Find(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

// UpdateStatus handles PATCH /admin/orders/{orderID}/status.
func (h *AdminOrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id := chi.URLParam(r, "orderID")
	order, err := h.orders.Advance(r.Context(), id, status)
	if err != nil {
		h.logger.Warn("admin status update failed", "order_id", id, "status", string(status), "error", err)
		writeDomainError(w, err)
		return
	}
	h.logger.Info("admin updated order status",
		"order_id", id,
		"status", string(status),
		"operator", middleware.AdminSubject(r.Context()),
	)
	writeJSON(w, http.StatusOK, newOrderView(order))
}

// Cancel handles POST /admin/orders/{orderID}/cancel. Staff may cancel at any
// stage before the order is finished.
func (h *AdminOrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	order, err := h.orders.StaffCancel(r.Context(), id)
	if errors.Is(err, orders.ErrNotCancellable) {
		writeError(w, http.StatusConflict, codeConflict, "order is already "+string(order.Status))
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("admin cancelled order", "order_id", id, "operator", middleware.AdminSubject(r.Context()))
	writeJSON(w, http.StatusOK, newOrderView(order))
}

// Delete handles DELETE /admin/orders/{orderID}. No notification is sent.
func (h *AdminOrdersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	if err := h.orders.Ledger().Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("admin deleted order", "order_id", id, "operator", middleware.AdminSubject(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Statuses handles GET /admin/orders/statuses.
func (h *AdminOrdersHandler) Statuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statuses": orders.Statuses()})
}
