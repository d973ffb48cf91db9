package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
)

// ErrIgnored is returned for webhooks that carry nothing for the bot: group
// chats, status broadcasts and unsupported message types.
var ErrIgnored = errors.New("gateway: event ignored")

// WebhookPayload is the JSON body the gateway posts per inbound message.
type WebhookPayload struct {
	ID        string                  `json:"id"`
	From      string                  `json:"from"`
	To        string                  `json:"to,omitempty"`
	Chat      string                  `json:"chat,omitempty"`
	Timestamp int64                   `json:"timestamp"`
	Type      string                  `json:"type"`
	Text      string                  `json:"text,omitempty"`
	Image     *messaging.Image        `json:"image,omitempty"`
	Order     *messaging.CatalogOrder `json:"order,omitempty"`
	FromMe    bool                    `json:"from_me,omitempty"`
}

// ParseWebhook decodes a webhook body into an inbound event. Messages the
// shop account sends itself are attributed to the chat they were sent in and
// flagged FromOperator.
func ParseWebhook(body []byte) (messaging.InboundEvent, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return messaging.InboundEvent{}, fmt.Errorf("gateway: decode webhook: %w", err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return messaging.InboundEvent{}, errors.New("gateway: webhook missing id")
	}

	chat := p.Chat
	if chat == "" {
		if p.FromMe {
			chat = p.To
		} else {
			chat = p.From
		}
	}
	if messaging.IsGroupChat(chat) || messaging.IsGroupChat(p.From) || strings.HasPrefix(chat, "status@") {
		return messaging.InboundEvent{}, ErrIgnored
	}

	evt := messaging.InboundEvent{
		ID:           p.ID,
		Identity:     messaging.NormalizeIdentity(chat),
		Chat:         chat,
		Timestamp:    time.Unix(p.Timestamp, 0).UTC(),
		FromOperator: p.FromMe,
	}
	if p.Timestamp == 0 {
		evt.Timestamp = time.Time{}
	}

	switch strings.ToLower(p.Type) {
	case "text", "chat", "":
		evt.Kind = messaging.KindText
		evt.Text = p.Text
	case "image":
		evt.Kind = messaging.KindImage
		evt.Image = p.Image
		if evt.Image != nil {
			evt.Text = evt.Image.Caption
		}
	case "catalog_order", "order":
		evt.Kind = messaging.KindCatalogOrder
		evt.Catalog = p.Order
	default:
		return messaging.InboundEvent{}, ErrIgnored
	}

	if !evt.Valid() {
		return messaging.InboundEvent{}, fmt.Errorf("gateway: malformed %s event %s", evt.Kind, p.ID)
	}
	return evt, nil
}
