package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
)

// Queue carries inbound events from the webhook to the worker. MemoryQueue
// and SQSQueue implement it.
type Queue interface {
	Send(ctx context.Context, msg queueSend) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// queueSend carries the ordering keys a FIFO queue needs next to the body.
type queueSend struct {
	Body     string
	GroupID  string
	DedupeID string
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeEvent jobType = "inbound_event"
)

type queuePayload struct {
	ID         string                 `json:"id"`
	Kind       jobType                `json:"kind"`
	Event      messaging.InboundEvent `json:"event"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.Kind == "" {
		payload.Kind = jobTypeEvent
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("conversation: failed to decode payload: %w", err)
	}
	if payload.Kind != jobTypeEvent {
		return queuePayload{}, fmt.Errorf("conversation: unknown job kind %q", payload.Kind)
	}
	if !payload.Event.Valid() {
		return queuePayload{}, fmt.Errorf("conversation: job %s carries an invalid event", payload.ID)
	}
	return payload, nil
}
