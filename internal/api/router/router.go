package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Mohamed39200Lo/Coffee/internal/http/handlers"
	httpmiddleware "github.com/Mohamed39200Lo/Coffee/internal/http/middleware"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	Webhook            *handlers.GatewayWebhookHandler
	WebhookLimiter     *httpmiddleware.RateLimiter
	AdminOrders        *handlers.AdminOrdersHandler
	AdminSessions      *handlers.AdminSessionsHandler
	AdminCatalog       *handlers.AdminCatalogHandler
	AdminTranscripts   *handlers.AdminTranscriptsHandler
	AdminStats         *handlers.AdminStatsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(logger))

	// Public endpoints (webhook, probes, metrics)
	r.Group(func(public chi.Router) {
		health := cfg.Health
		if health == nil {
			health = handlers.NewHealthHandler(nil)
		}
		public.Get("/health", health.Live)
		public.Get("/ready", health.Ready)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			webhook := http.Handler(http.HandlerFunc(cfg.Webhook.Handle))
			if cfg.WebhookLimiter != nil {
				webhook = cfg.WebhookLimiter.Middleware(webhook)
			}
			public.Method(http.MethodPost, "/webhooks/messages", webhook)
		}
	})

	// Admin routes are only served behind a signing secret.
	if cfg.AdminAuthSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
		return r
	}
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		if h := cfg.AdminOrders; h != nil {
			admin.Route("/orders", func(r chi.Router) {
				r.Get("/", h.List)
				r.Get("/archive", h.ListArchived)
				r.Get("/statuses", h.Statuses)
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Delete("/", h.Delete)
					r.Patch("/status", h.UpdateStatus)
					r.Post("/cancel", h.Cancel)
				})
			})
		}
		if h := cfg.AdminSessions; h != nil {
			admin.Route("/sessions", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Start)
				r.Get("/{sessionID}", h.Get)
				r.Delete("/{sessionID}", h.End)
			})
		}
		if h := cfg.AdminCatalog; h != nil {
			admin.Get("/menu", h.GetMenu)
			admin.Put("/menu", h.PutMenu)
			admin.Route("/offers", func(r chi.Router) {
				r.Get("/", h.ListOffers)
				r.Post("/", h.CreateOffer)
				r.Post("/prune", h.PruneOffers)
				r.Put("/{offerID}", h.UpdateOffer)
				r.Delete("/{offerID}", h.DeleteOffer)
			})
		}
		if h := cfg.AdminTranscripts; h != nil {
			admin.Get("/transcripts/{identity}", h.Get)
		}
		if h := cfg.AdminStats; h != nil {
			admin.Get("/stats", h.Get)
		}
	})

	return r
}
