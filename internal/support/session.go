// Package support tracks live hand-offs of a conversation to a human
// operator. Each session is addressed by a short numeric code that operators
// type to close it, and expires on its own after a fixed lifetime.
package support

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when no live session has the code
	ErrSessionNotFound = errors.New("support session not found")

	// ErrCodeSpaceExhausted is returned when every code is held by a live session
	ErrCodeSpaceExhausted = errors.New("no free support session codes")
)

const (
	minCode = 1000
	maxCode = 9999
)

// Kind says who opened the session.
type Kind string

const (
	// KindCustomer sessions are requested by the participant from the menu.
	KindCustomer Kind = "customer"
	// KindOperator sessions are opened by staff from the admin API.
	KindOperator Kind = "operator"
)

// Session is a live hand-off.
type Session struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Remaining returns how long the session has left at now.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
