package bootstrap

import (
	"fmt"

	appconfig "github.com/Mohamed39200Lo/Coffee/internal/config"
	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging/gateway"
	"github.com/Mohamed39200Lo/Coffee/internal/notify"
	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// BuildGatewayClient returns nil without GATEWAY_BASE_URL.
func BuildGatewayClient(cfg *appconfig.Config, logger *logging.Logger) (*gateway.Client, error) {
	if cfg == nil || cfg.GatewayBaseURL == "" {
		return nil, nil
	}
	client, err := gateway.New(gateway.Config{
		BaseURL:       cfg.GatewayBaseURL,
		APIKey:        cfg.GatewayAPIKey,
		WebhookSecret: cfg.GatewayWebhookSecret,
		MaxRetries:    cfg.GatewayMaxRetries,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: gateway client: %w", err)
	}
	return client, nil
}

// BuildOutboundSender creates the outbound sender and applies the standard
// wrappers. The transcript wrapper sits innermost so it records what the
// gateway actually accepted.
func BuildOutboundSender(client *gateway.Client, transcript *messaging.Store, m *metrics.MessagingMetrics, logger *logging.Logger) messaging.Sender {
	var sender messaging.Sender
	if client != nil {
		sender = client
	} else {
		logger.Warn("no messaging gateway configured; outbound messages are only logged")
		sender = messaging.NewLogSender(logger)
	}
	if transcript != nil {
		sender = messaging.WrapWithPersistence(sender, transcript, logger)
	}
	return messaging.WrapWithMetrics(sender, m)
}

// BuildEmailSender prefers SendGrid, then SES, then a logging stub.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if cfg.SESFromEmail != "" && ses != nil {
		if s := notify.NewSESSender(ses, notify.SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.SendGridFromName}, logger); s != nil {
			return s
		}
	}
	return notify.NewLogEmailSender(logger)
}

// BuildQueue returns the inbound event queue named by QUEUE_BACKEND.
func BuildQueue(cfg *appconfig.Config, sqsClient conversation.SQSAPI) (conversation.Queue, error) {
	switch cfg.QueueBackend {
	case "", "memory":
		return conversation.NewMemoryQueue(1024), nil
	case "sqs":
		if sqsClient == nil || cfg.ConversationQueueURL == "" {
			return nil, fmt.Errorf("bootstrap: sqs queue requires CONVERSATION_QUEUE_URL")
		}
		return conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
}
