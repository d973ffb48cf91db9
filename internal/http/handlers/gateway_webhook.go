package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging/gateway"
	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Headers the gateway signs webhook deliveries with.
const (
	HeaderGatewayTimestamp = "X-Gateway-Timestamp"
	HeaderGatewaySignature = "X-Gateway-Signature"
)

type eventPublisher interface {
	EnqueueEvent(ctx context.Context, evt messaging.InboundEvent) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(timestamp, signature string, payload []byte) error
}

type inboundRecorder interface {
	RecordInbound(ctx context.Context, evt messaging.InboundEvent) error
}

// GatewayWebhookHandler accepts inbound WhatsApp messages from the gateway
// and queues them for the conversation worker.
type GatewayWebhookHandler struct {
	publisher  eventPublisher
	verifier   signatureVerifier
	transcript inboundRecorder
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// GatewayWebhookOption customizes the webhook handler.
type GatewayWebhookOption func(*GatewayWebhookHandler)

// WithSignatureVerifier rejects deliveries whose signature does not check out.
func WithSignatureVerifier(v signatureVerifier) GatewayWebhookOption {
	return func(h *GatewayWebhookHandler) { h.verifier = v }
}

// WithTranscript records every accepted inbound message.
func WithTranscript(t inboundRecorder) GatewayWebhookOption {
	return func(h *GatewayWebhookHandler) { h.transcript = t }
}

// WithWebhookMetrics counts webhooks by kind and outcome.
func WithWebhookMetrics(m *metrics.MessagingMetrics) GatewayWebhookOption {
	return func(h *GatewayWebhookHandler) { h.metrics = m }
}

// NewGatewayWebhookHandler creates the inbound webhook handler.
func NewGatewayWebhookHandler(publisher eventPublisher, logger *logging.Logger, opts ...GatewayWebhookOption) *GatewayWebhookHandler {
	if publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &GatewayWebhookHandler{publisher: publisher, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle serves POST /webhooks/messages.
func (h *GatewayWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	kind := "unknown"
	defer func() {
		h.metrics.ObserveWebhookLatency(kind, h.now().Sub(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.ObserveInbound(kind, "bad_request")
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	if h.verifier != nil {
		ts := r.Header.Get(HeaderGatewayTimestamp)
		sig := r.Header.Get(HeaderGatewaySignature)
		if err := h.verifier.VerifyWebhookSignature(ts, sig, body); err != nil {
			h.logger.Warn("rejected gateway webhook", "error", err, "remote_addr", r.RemoteAddr)
			h.metrics.ObserveInbound(kind, "unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
			return
		}
	}

	evt, err := gateway.ParseWebhook(body)
	if errors.Is(err, gateway.ErrIgnored) {
		h.metrics.ObserveInbound(kind, "ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Warn("invalid gateway webhook", "error", err)
		h.metrics.ObserveInbound(kind, "bad_request")
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	kind = string(evt.Kind)

	if h.transcript != nil {
		if err := h.transcript.RecordInbound(r.Context(), evt); err != nil {
			h.logger.Warn("failed to record inbound message", "error", err, "event_id", evt.ID)
		}
	}

	if err := h.publisher.EnqueueEvent(r.Context(), evt); err != nil {
		h.logger.Error("failed to enqueue inbound event", "error", err, "event_id", evt.ID, "identity", evt.Identity)
		h.metrics.ObserveInbound(kind, "enqueue_failed")
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "try again later")
		return
	}

	h.metrics.ObserveInbound(kind, "accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": evt.ID})
}

// Compile-time check that the gateway client verifies signatures.
var _ signatureVerifier = (*gateway.Client)(nil)
