package messaging

import (
	"context"
	"time"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Transcript directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TranscriptEntry is one logged message.
type TranscriptEntry struct {
	ID        int64     `json:"id"`
	Identity  string    `json:"identity"`
	Direction string    `json:"direction"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	MediaRef  string    `json:"media_ref,omitempty"`
	Status    string    `json:"status"`
	EventID   string    `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptRecorder persists conversation messages.
type TranscriptRecorder interface {
	Append(ctx context.Context, entry TranscriptEntry) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// PersistingSender records outbound messages before sending them and marks
// each record sent or failed afterwards.
type PersistingSender struct {
	inner  Sender
	store  TranscriptRecorder
	logger *logging.Logger
	now    func() time.Time
}

// WrapWithPersistence wraps a sender to persist outbound messages.
// If store is nil, returns the original sender unchanged.
func WrapWithPersistence(sender Sender, store TranscriptRecorder, logger *logging.Logger) Sender {
	if store == nil {
		return sender
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PersistingSender{inner: sender, store: store, logger: logger, now: time.Now}
}

// Send persists the outbound message, then sends it.
func (p *PersistingSender) Send(ctx context.Context, identity string, msg OutboundMessage) error {
	body := msg.Text
	if body == "" {
		body = msg.Caption
	}
	id, err := p.store.Append(ctx, TranscriptEntry{
		Identity:  identity,
		Direction: DirectionOutbound,
		Kind:      outboundKind(msg),
		Body:      body,
		MediaRef:  msg.ImageURL,
		Status:    "pending",
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		// delivery matters more than the transcript
		p.logger.Warn("failed to persist outbound message", "error", err, "identity", identity)
	}

	sendErr := p.inner.Send(ctx, identity, msg)

	if id != 0 {
		status := "sent"
		if sendErr != nil {
			status = "failed"
		}
		if updateErr := p.store.UpdateStatus(ctx, id, status); updateErr != nil {
			p.logger.Warn("failed to update message status", "error", updateErr, "msg_id", id, "status", status)
		}
	}
	return sendErr
}

func outboundKind(msg OutboundMessage) string {
	if msg.ImageURL != "" {
		return string(KindImage)
	}
	return string(KindText)
}
