package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type catalogEditor interface {
	Options(ctx context.Context) catalog.Options
	SaveOptions(ctx context.Context, opts catalog.Options) error
	Offers(ctx context.Context) ([]catalog.Offer, error)
	SaveOffer(ctx context.Context, offer catalog.Offer) (catalog.Offer, error)
	DeleteOffer(ctx context.Context, id string) error
	PruneExpiredOffers(ctx context.Context) (int, error)
	MenuImages(ctx context.Context) []catalog.MenuImage
	SetMenuImages(ctx context.Context, images []catalog.MenuImage) error
}

// AdminCatalogHandler edits the menu, offers and menu pictures.
type AdminCatalogHandler struct {
	catalog catalogEditor
	logger  *logging.Logger
}

// NewAdminCatalogHandler creates a new admin catalog handler.
func NewAdminCatalogHandler(c catalogEditor, logger *logging.Logger) *AdminCatalogHandler {
	if c == nil {
		panic("handlers: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCatalogHandler{catalog: c, logger: logger}
}

// MenuDocument is the editable menu: options plus pictures.
type MenuDocument struct {
	Options *catalog.Options     `json:"options,omitempty"`
	Images  *[]catalog.MenuImage `json:"images,omitempty"`
}

// GetMenu handles GET /admin/menu.
func (h *AdminCatalogHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	opts := h.catalog.Options(r.Context())
	images := h.catalog.MenuImages(r.Context())
	if images == nil {
		images = []catalog.MenuImage{}
	}
	writeJSON(w, http.StatusOK, MenuDocument{Options: &opts, Images: &images})
}

// PutMenu handles PUT /admin/menu. Omitted parts are left unchanged.
func (h *AdminCatalogHandler) PutMenu(w http.ResponseWriter, r *http.Request) {
	var doc MenuDocument
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if doc.Options == nil && doc.Images == nil {
		writeError(w, http.StatusBadRequest, codeValidation, "options or images required")
		return
	}
	if doc.Options != nil {
		if err := h.catalog.SaveOptions(r.Context(), *doc.Options); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if doc.Images != nil {
		if err := h.catalog.SetMenuImages(r.Context(), *doc.Images); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	h.logger.Info("menu updated", "options", doc.Options != nil, "images", doc.Images != nil)
	h.GetMenu(w, r)
}

// ListOffers handles GET /admin/offers.
func (h *AdminCatalogHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.catalog.Offers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "total": len(offers)})
}

// CreateOffer handles POST /admin/offers.
func (h *AdminCatalogHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var offer catalog.Offer
	if err := decodeJSON(r, &offer); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	offer.ID = ""
	saved, err := h.catalog.SaveOffer(r.Context(), offer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("offer created", "offer_id", saved.ID)
	writeJSON(w, http.StatusCreated, saved)
}

// UpdateOffer handles PUT /admin/offers/{offerID}.
func (h *AdminCatalogHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var offer catalog.Offer
	if err := decodeJSON(r, &offer); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	id := chi.URLParam(r, "offerID")
	offers, err := h.catalog.Offers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	found := false
	for _, o := range offers {
		if o.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeDomainError(w, catalog.ErrOfferNotFound)
		return
	}
	offer.ID = id
	saved, err := h.catalog.SaveOffer(r.Context(), offer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteOffer handles DELETE /admin/offers/{offerID}.
func (h *AdminCatalogHandler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteOffer(r.Context(), chi.URLParam(r, "offerID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PruneOffers handles POST /admin/offers/prune.
func (h *AdminCatalogHandler) PruneOffers(w http.ResponseWriter, r *http.Request) {
	removed, err := h.catalog.PruneExpiredOffers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
