package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// EventHandler processes one inbound event for its identity.
type EventHandler interface {
	Handle(ctx context.Context, evt messaging.InboundEvent)
}

// Worker consumes inbound events from the queue and hands them to the
// identity's dispatcher lane. A single receive loop submits messages in the
// order the queue returned them; dedupe, handling and the queue delete run
// inside the lane job so nothing between receive and the lane can reorder
// one identity's events. Concurrency comes from the lanes.
type Worker struct {
	handler   EventHandler
	queue     Queue
	exec      Executor
	processed processedEventStore
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedEventStore
}

const (
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	dedupeProvider       = "gateway"
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

type processedEventStore interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedEventsStore drops events whose id was already handled, so a
// redelivered gateway event is answered once.
func WithProcessedEventsStore(store processedEventStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// NewWorker constructs a queue consumer feeding handler through exec.
func NewWorker(handler EventHandler, queue Queue, exec Executor, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if exec == nil {
		panic("conversation: executor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		handler:   handler,
		queue:     queue,
		exec:      exec,
		processed: cfg.processed,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the receive loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Wait blocks until the receive loop exits.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started")

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive inbound events", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage decodes msg and queues it on its identity's lane. Undecodable
// messages are deleted straight away.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	payload, err := decodePayload(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable inbound event", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	evt := payload.Event

	w.logger.Debug("dispatching inbound event", "job_id", payload.ID, "identity", evt.Identity, "kind", string(evt.Kind))
	err = w.exec.Submit(evt.Identity, func(jobCtx context.Context) {
		defer w.deleteMessage(msg.ReceiptHandle)
		if w.duplicate(jobCtx, evt) {
			return
		}
		w.handler.Handle(jobCtx, evt)
	})
	if err != nil {
		// Left on the queue; SQS redelivers it after the visibility timeout.
		w.logger.Warn("inbound event not dispatched", "error", err, "event_id", evt.ID, "identity", evt.Identity)
	}
}

func (w *Worker) duplicate(ctx context.Context, evt messaging.InboundEvent) bool {
	if w.processed == nil {
		return false
	}
	fresh, err := w.processed.MarkProcessed(ctx, dedupeProvider, evt.ID)
	if err != nil {
		w.logger.Warn("dedupe check failed, processing anyway", "error", err, "event_id", evt.ID)
		return false
	}
	if !fresh {
		w.logger.Info("skipping duplicate inbound event", "event_id", evt.ID, "identity", evt.Identity)
		return true
	}
	return false
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound event", "error", err)
	}
}
