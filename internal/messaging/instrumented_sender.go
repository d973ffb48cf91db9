package messaging

import (
	"context"

	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
)

// InstrumentedSender counts send outcomes.
type InstrumentedSender struct {
	inner   Sender
	metrics *metrics.MessagingMetrics
}

// WrapWithMetrics returns sender unchanged when m is nil.
func WrapWithMetrics(sender Sender, m *metrics.MessagingMetrics) Sender {
	if m == nil {
		return sender
	}
	return &InstrumentedSender{inner: sender, metrics: m}
}

func (s *InstrumentedSender) Send(ctx context.Context, identity string, msg OutboundMessage) error {
	err := s.inner.Send(ctx, identity, msg)
	status := "sent"
	if err != nil {
		status = "failed"
	}
	s.metrics.ObserveOutbound(status, msg.ImageURL != "")
	return err
}
