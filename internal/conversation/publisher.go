package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Publisher enqueues inbound events for asynchronous processing.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// EnqueueEvent publishes one inbound event.
func (p *Publisher) EnqueueEvent(ctx context.Context, evt messaging.InboundEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !evt.Valid() {
		return fmt.Errorf("conversation: refusing to enqueue invalid event %q", evt.ID)
	}

	payload, body, err := encodePayload(queuePayload{
		ID:         evt.ID,
		Kind:       jobTypeEvent,
		Event:      evt,
		EnqueuedAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, queueSend{Body: body, GroupID: evt.Identity, DedupeID: payload.ID}); err != nil {
		return fmt.Errorf("conversation: failed to enqueue event: %w", err)
	}

	p.logger.Debug("inbound event enqueued", "job_id", payload.ID, "identity", evt.Identity, "kind", string(evt.Kind))
	return nil
}
