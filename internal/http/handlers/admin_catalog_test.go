package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type offerList struct {
	Offers []catalog.Offer `json:"offers"`
	Total  int             `json:"total"`
}

func catalogRouter(t *testing.T) (http.Handler, *catalog.Service, *clock.FakeClock) {
	t.Helper()
	fc := clock.Fake(time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC))
	svc := catalog.NewService(docstore.NewMemoryStore(), fc, logging.Discard())
	h := NewAdminCatalogHandler(svc, logging.Discard())
	r := chi.NewRouter()
	r.Get("/admin/menu", h.GetMenu)
	r.Put("/admin/menu", h.PutMenu)
	r.Get("/admin/offers", h.ListOffers)
	r.Post("/admin/offers", h.CreateOffer)
	r.Post("/admin/offers/prune", h.PruneOffers)
	r.Put("/admin/offers/{offerID}", h.UpdateOffer)
	r.Delete("/admin/offers/{offerID}", h.DeleteOffer)
	return r, svc, fc
}

func TestAdminCatalog_MenuDefaults(t *testing.T) {
	router, _, _ := catalogRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/admin/menu", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody[MenuDocument](t, rec)
	require.NotNil(t, doc.Options)
	assert.Equal(t, catalog.DefaultOptions().MainMenu, doc.Options.MainMenu)
	require.NotNil(t, doc.Images)
	assert.Empty(t, *doc.Images)
}

func TestAdminCatalog_PutMenuImagesOnly(t *testing.T) {
	router, svc, _ := catalogRouter(t)

	rec := doRequest(t, router, http.MethodPut, "/admin/menu", `{"images":[{"url":"https://cdn.example/menu-1.jpg","caption":"Hot drinks"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	images := svc.MenuImages(context.Background())
	require.Len(t, images, 1)
	assert.Equal(t, "Hot drinks", images[0].Caption)
	assert.Equal(t, catalog.DefaultOptions().MainMenu, svc.Options(context.Background()).MainMenu)
}

func TestAdminCatalog_PutMenuRejectsInvalid(t *testing.T) {
	router, _, _ := catalogRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "nothing to update", body: `{}`},
		{name: "image without url", body: `{"images":[{"caption":"x"}]}`},
		{name: "empty main menu", body: `{"options":{"mainMenu":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPut, "/admin/menu", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminCatalog_OfferLifecycle(t *testing.T) {
	router, _, _ := catalogRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/admin/offers", `{"id":"ignored","title":"Two flat whites","price":"25 SAR"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[catalog.Offer](t, rec)
	require.NotEmpty(t, created.ID)
	assert.NotEqual(t, "ignored", created.ID)

	rec = doRequest(t, router, http.MethodPut, "/admin/offers/"+created.ID, `{"title":"Two flat whites","price":"22 SAR"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "22 SAR", decodeBody[catalog.Offer](t, rec).Price)

	rec = doRequest(t, router, http.MethodGet, "/admin/offers", "")
	list := decodeBody[offerList](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Offers[0].ID)

	rec = doRequest(t, router, http.MethodDelete, "/admin/offers/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/admin/offers/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCatalog_OfferValidation(t *testing.T) {
	router, _, _ := catalogRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/admin/offers", `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/admin/offers/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCatalog_PruneExpired(t *testing.T) {
	router, svc, fc := catalogRouter(t)
	ctx := context.Background()

	soon := fc.Now().Add(time.Hour)
	_, err := svc.SaveOffer(ctx, catalog.Offer{Title: "Morning deal", ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = svc.SaveOffer(ctx, catalog.Offer{Title: "Loyalty card"})
	require.NoError(t, err)

	fc.Advance(2 * time.Hour)

	rec := doRequest(t, router, http.MethodPost, "/admin/offers/prune", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 1}, decodeBody[map[string]int](t, rec))

	offers, err := svc.Offers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Loyalty card", offers[0].Title)
}
