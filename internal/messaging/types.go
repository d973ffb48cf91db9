package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrTransient marks a send that failed for a reason worth retrying later
// (gateway timeout, 5xx, rate limit). Callers log it and move on.
var ErrTransient = errors.New("messaging: transient delivery failure")

// EventKind is the payload type of an inbound event.
type EventKind string

const (
	KindText         EventKind = "text"
	KindImage        EventKind = "image"
	KindCatalogOrder EventKind = "catalog_order"
)

// Image describes an inbound media attachment.
type Image struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Ref returns the most stable reference to the image.
func (i Image) Ref() string {
	if i.URL != "" {
		return i.URL
	}
	return i.ID
}

// CatalogItem is one line of an order placed from the shop catalog.
type CatalogItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

// CatalogOrder is the structured cart a participant can send instead of text.
type CatalogOrder struct {
	Items []CatalogItem `json:"items"`
	Note  string        `json:"note,omitempty"`
}

// InboundEvent is one message received from a participant (or, with
// FromOperator set, sent by the shop's own account).
type InboundEvent struct {
	ID           string        `json:"id"`
	Identity     string        `json:"identity"`
	Chat         string        `json:"chat,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	Kind         EventKind     `json:"kind"`
	Text         string        `json:"text,omitempty"`
	Image        *Image        `json:"image,omitempty"`
	Catalog      *CatalogOrder `json:"catalog,omitempty"`
	FromOperator bool          `json:"from_operator,omitempty"`
}

// Valid reports whether the event carries the payload its kind promises.
func (e InboundEvent) Valid() bool {
	if e.Identity == "" {
		return false
	}
	switch e.Kind {
	case KindText:
		return true
	case KindImage:
		return e.Image != nil && e.Image.Ref() != ""
	case KindCatalogOrder:
		return e.Catalog != nil && len(e.Catalog.Items) > 0
	}
	return false
}

// OutboundMessage is one reply. Text is always sent; ImageURL turns it into a
// captioned media message.
type OutboundMessage struct {
	Text        string `json:"text,omitempty"`
	LinkPreview bool   `json:"link_preview,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Sender delivers outbound messages to an identity.
type Sender interface {
	Send(ctx context.Context, identity string, msg OutboundMessage) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, identity string, msg OutboundMessage) error

func (f SenderFunc) Send(ctx context.Context, identity string, msg OutboundMessage) error {
	return f(ctx, identity, msg)
}
