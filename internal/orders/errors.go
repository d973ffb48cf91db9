package orders

import "errors"

var (
	// ErrOrderNotFound is returned when no live or archived order has the id
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidStatus is returned for an unknown status name
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrNotTerminal is returned when archiving an order that is still in progress
	ErrNotTerminal = errors.New("order is not in a terminal status")

	// ErrNotCancellable is returned when the order is past the stages a customer may cancel
	ErrNotCancellable = errors.New("order can no longer be cancelled")

	// ErrStatusRefused is returned when a conditional status change found the order in a stage it does not allow
	ErrStatusRefused = errors.New("order status change refused")

	// ErrIDSpaceExhausted is returned when no unused id could be generated
	ErrIDSpaceExhausted = errors.New("could not allocate an unused order id")
)
