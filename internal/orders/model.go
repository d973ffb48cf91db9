package orders

import (
	"fmt"
	"strings"
	"time"
)

// Status is an order lifecycle stage.
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPending         Status = "pending"
	StatusConfirmed       Status = "confirmed"
	StatusPreparing       Status = "preparing"
	StatusOutForDelivery  Status = "out_for_delivery"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

var allStatuses = []Status{
	StatusAwaitingPayment,
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Statuses lists every valid status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a status name. Matching ignores case and surrounding
// space, and accepts dashes or spaces in place of underscores.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, s := range allStatuses {
		if string(s) == norm {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Terminal reports whether the order is finished and belongs in the archive.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether a participant may still cancel the order.
func (s Status) Cancellable() bool {
	switch s {
	case StatusAwaitingPayment, StatusPending, StatusConfirmed:
		return true
	}
	return false
}

// Kind records how the order details were captured.
type Kind string

const (
	KindText    Kind = "text"
	KindCatalog Kind = "catalog"
)

// Order is a customer order as stored in the orders document.
type Order struct {
	ID              string    `json:"id"`
	Identity        string    `json:"identity"`
	Kind            Kind      `json:"kind,omitempty"`
	Details         string    `json:"details"`
	Filling         string    `json:"filling,omitempty"`
	Name            string    `json:"name,omitempty"`
	Status          Status    `json:"status"`
	PaymentProofRef string    `json:"paymentProofRef,omitempty"`
	Language        string    `json:"language,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status   Status
	Identity string
}

func (f Filter) match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Identity != "" && o.Identity != f.Identity {
		return false
	}
	return true
}

// sameOrder reports whether two records describe the same placement rather
// than two orders that happen to share an id.
func sameOrder(a, b Order) bool {
	return a.Identity == b.Identity && !b.CreatedAt.IsZero() && a.CreatedAt.Equal(b.CreatedAt)
}
