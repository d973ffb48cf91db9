package messaging

import (
	"context"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// LogSender writes outbound messages to the log instead of a gateway. It is
// used in development when no gateway is configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, identity string, msg OutboundMessage) error {
	s.logger.Info("outbound message (log only)",
		"identity", identity,
		"text", msg.Text,
		"image_url", msg.ImageURL,
	)
	return nil
}
