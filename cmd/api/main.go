package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Mohamed39200Lo/Coffee/cmd/mainconfig"
	"github.com/Mohamed39200Lo/Coffee/internal/api/router"
	"github.com/Mohamed39200Lo/Coffee/internal/app/bootstrap"
	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	appconfig "github.com/Mohamed39200Lo/Coffee/internal/config"
	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/internal/events"
	"github.com/Mohamed39200Lo/Coffee/internal/http/handlers"
	httpmiddleware "github.com/Mohamed39200Lo/Coffee/internal/http/middleware"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/notify"
	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

const housekeepingInterval = time.Hour

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, logging.WithFormat(cfg.LogFormat))
	logger.Info("starting coffee bot",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"queue", cfg.QueueBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, registry := setupMetrics()
	a, err := newApp(ctx, cfg, logger, registry, metricsHandler)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	a.start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	a.close()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns the /metrics handler and the registry every
// collector is registered with.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), reg
}

// app is the fully wired process: HTTP surface, queue consumer and the
// in-memory conversation engine behind them.
type app struct {
	handler    http.Handler
	engine     *conversation.Engine
	worker     *conversation.Worker
	dispatcher *conversation.Dispatcher
	catalog    *catalog.Service
	processed  bootstrap.ProcessedStore
	limiter    *httpmiddleware.RateLimiter
	redis      *redis.Client
	pool       *pgxpool.Pool
	logger     *logging.Logger
}

func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer, metricsHandler http.Handler) (*app, error) {
	a := &app{logger: logger}

	// AWS clients are only built when a backend needs them; interfaces stay
	// nil otherwise so the builders fall back.
	var (
		s3API     docstore.S3API
		sqsAPI    conversation.SQSAPI
		dynamoAPI reviews.DynamoAPI
		sesAPI    notify.SESAPI
	)
	if mainconfig.NeedsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		clients := mainconfig.NewClients(awsCfg, cfg)
		s3API = clients.S3
		sqsAPI = clients.SQS
		dynamoAPI = clients.DynamoDB
		sesAPI = clients.SES
	}

	a.redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	a.pool = bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)

	docs, err := bootstrap.BuildDocStore(cfg, a.redis, s3API, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	messagingMetrics := metrics.NewMessagingMetrics(reg)
	engineMetrics := metrics.NewEngineMetrics(reg)

	clk := clock.Real()
	ledger := orders.NewLedger(docs, orders.WithClock(clk), orders.WithLogger(logger))
	orderSvc := orders.NewService(ledger, logger)
	a.catalog = catalog.NewService(docs, clk, logger)
	shop := a.catalog.Options(ctx).ShopName
	texts := catalog.NewTexts(shop, nil)

	regOpts := []support.Option{
		support.WithClock(clk),
		support.WithTTL(cfg.SessionTTL),
		support.WithLogger(logger),
	}
	if cfg.PersistSessions {
		regOpts = append(regOpts, support.WithStore(docs))
	}
	sessions := support.NewRegistry(regOpts...)

	a.dispatcher = conversation.NewDispatcher(cfg.LaneCount, logger)

	var transcript *messaging.Store
	if a.pool != nil {
		transcript = messaging.NewStore(a.pool)
	}
	gatewayClient, err := bootstrap.BuildGatewayClient(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	sender := bootstrap.BuildOutboundSender(gatewayClient, transcript, messagingMetrics, logger)
	alerts := notify.NewService(bootstrap.BuildEmailSender(cfg, sesAPI, logger), cfg.OperatorEmails, shop, logger)

	a.engine = conversation.NewEngine(conversation.NewStore(), sessions, orderSvc, sender,
		conversation.WithConfig(conversation.Config{
			InactivityTimeout:   cfg.InactivityTimeout,
			StaleEventThreshold: cfg.StaleEventThreshold,
			FeedbackWindow:      cfg.FeedbackWindow,
			SubmissionGrace:     cfg.SubmissionGrace,
			LanguageSelection:   cfg.LanguageSelection,
			DefaultLanguage:     cfg.DefaultLanguage,
			RequirePaymentProof: cfg.RequirePaymentProof,
		}),
		conversation.WithCatalog(a.catalog),
		conversation.WithTexts(texts),
		conversation.WithReviews(bootstrap.BuildReviewStore(cfg, dynamoAPI, logger)),
		conversation.WithOperatorAlerts(alerts),
		conversation.WithExecutor(a.dispatcher),
		conversation.WithClock(clk),
		conversation.WithLogger(logger),
		conversation.WithMetrics(engineMetrics),
	)
	orderSvc.Observe(notify.NewNotifier(sender, texts,
		notify.WithLanguageSource(a.engine),
		notify.WithReviewPrompter(a.engine),
		notify.WithDefaultLanguage(cfg.DefaultLanguage),
		notify.WithNotifierLogger(logger),
		notify.WithNotifierMetrics(engineMetrics),
	))
	if err := a.engine.RestoreSessions(ctx); err != nil {
		logger.Warn("could not restore support sessions", "error", err)
	}

	queue, err := bootstrap.BuildQueue(cfg, sqsAPI)
	if err != nil {
		a.close()
		return nil, err
	}
	a.processed = bootstrap.BuildProcessedStore(cfg, a.redis, a.pool)
	a.worker = conversation.NewWorker(a.engine, queue, a.dispatcher, logger,
		conversation.WithProcessedEventsStore(a.processed),
	)

	webhookOpts := []handlers.GatewayWebhookOption{handlers.WithWebhookMetrics(messagingMetrics)}
	if gatewayClient != nil && cfg.GatewayWebhookSecret != "" {
		webhookOpts = append(webhookOpts, handlers.WithSignatureVerifier(gatewayClient))
	} else {
		logger.Warn("GATEWAY_WEBHOOK_SECRET not set; webhook signatures are not verified")
	}
	var transcripts *handlers.AdminTranscriptsHandler
	if transcript != nil {
		webhookOpts = append(webhookOpts, handlers.WithTranscript(transcript))
		transcripts = handlers.NewAdminTranscriptsHandler(transcript)
	} else {
		transcripts = handlers.NewAdminTranscriptsHandler(nil)
	}

	checks := map[string]handlers.Pinger{}
	if a.redis != nil {
		client := a.redis
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}
	if a.pool != nil {
		checks["postgres"] = a.pool
	}

	a.limiter = httpmiddleware.NewRateLimiter(20, 40)
	a.handler = router.New(&router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(checks),
		Webhook:            handlers.NewGatewayWebhookHandler(conversation.NewPublisher(queue, logger), logger, webhookOpts...),
		WebhookLimiter:     a.limiter,
		AdminOrders:        handlers.NewAdminOrdersHandler(orderSvc, logger),
		AdminSessions:      handlers.NewAdminSessionsHandler(a.engine, sessions, logger),
		AdminCatalog:       handlers.NewAdminCatalogHandler(a.catalog, logger),
		AdminTranscripts:   transcripts,
		AdminStats:         handlers.NewAdminStatsHandler(a.engine),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return a, nil
}

// start launches the queue consumer and the housekeeping loop. Both stop
// when ctx is cancelled.
func (a *app) start(ctx context.Context) {
	a.worker.Start(ctx)
	go a.housekeeping(ctx)
}

func (a *app) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

// sweep drops expired offers and, where the backend does not expire them
// itself, old processed-event ids.
func (a *app) sweep(ctx context.Context) {
	removed, err := a.catalog.PruneExpiredOffers(ctx)
	if err != nil {
		a.logger.Warn("offer pruning failed", "error", err)
	} else if removed > 0 {
		a.logger.Info("expired offers removed", "count", removed)
	}

	pruner, ok := a.processed.(events.Pruner)
	if !ok {
		return
	}
	n, err := pruner.Prune(ctx)
	if err != nil {
		a.logger.Warn("processed event pruning failed", "error", err)
		return
	}
	if n > 0 {
		a.logger.Debug("processed event ids pruned", "count", n)
	}
}

// close waits for the consumer, drains the lanes and releases connections.
// The worker must have been stopped by cancelling its context first.
func (a *app) close() {
	if a.worker != nil {
		a.worker.Wait()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
