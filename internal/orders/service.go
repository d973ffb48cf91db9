package orders

import (
	"context"
	"errors"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// StatusObserver is told about every distinct status transition.
type StatusObserver interface {
	OnStatusChange(ctx context.Context, order Order, old, new Status)
}

// ObserverFunc adapts a function to StatusObserver.
type ObserverFunc func(ctx context.Context, order Order, old, new Status)

func (f ObserverFunc) OnStatusChange(ctx context.Context, order Order, old, new Status) {
	f(ctx, order, old, new)
}

// Service applies admin status changes: it updates the ledger, notifies
// observers once per distinct transition and archives terminal orders.
type Service struct {
	ledger    *Ledger
	observers []StatusObserver
	logger    *logging.Logger
}

// NewService wires a ledger to its observers.
func NewService(ledger *Ledger, logger *logging.Logger, observers ...StatusObserver) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{ledger: ledger, observers: observers, logger: logger}
}

// Ledger exposes the underlying ledger for read paths.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Observe registers another observer. Not safe to call concurrently with Advance.
func (s *Service) Observe(o StatusObserver) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// Advance sets the order status. Re-applying the current status notifies no
// one. Archiving failures are logged; the order then stays in the live
// document with its terminal status and a later Advance retries the move.
func (s *Service) Advance(ctx context.Context, id string, status Status) (Order, error) {
	return s.advance(ctx, id, status, func(old Status) bool {
		return !old.Terminal() || old == status
	})
}

func (s *Service) advance(ctx context.Context, id string, status Status, allowed func(Status) bool) (Order, error) {
	order, old, err := s.ledger.SetStatusIf(ctx, id, status, allowed)
	if err != nil {
		return order, err
	}

	if old != status {
		s.logger.Info("order status changed", "order_id", id, "from", string(old), "to", string(status))
		for _, obs := range s.observers {
			obs.OnStatusChange(ctx, order, old, status)
		}
	}

	if status.Terminal() {
		if err := s.ledger.Archive(ctx, id); err != nil && !errors.Is(err, ErrOrderNotFound) {
			s.logger.Error("failed to archive order", "order_id", id, "error", err)
		}
	}
	return order, nil
}

// Cancel is Advance to StatusCancelled, refused once the order left the
// cancellable stages. The stage is checked under the ledger lock, so a
// concurrent staff update to a later stage wins.
func (s *Service) Cancel(ctx context.Context, id string) (Order, error) {
	return s.cancel(ctx, id, Status.Cancellable)
}

// StaffCancel cancels an order at any stage before it is finished.
func (s *Service) StaffCancel(ctx context.Context, id string) (Order, error) {
	return s.cancel(ctx, id, func(old Status) bool { return !old.Terminal() })
}

func (s *Service) cancel(ctx context.Context, id string, allowed func(Status) bool) (Order, error) {
	order, err := s.advance(ctx, id, StatusCancelled, allowed)
	switch {
	case errors.Is(err, ErrStatusRefused):
		return order, ErrNotCancellable
	case errors.Is(err, ErrOrderNotFound):
		// Archived orders are terminal.
		archived, findErr := s.ledger.Find(ctx, id)
		if findErr != nil {
			return Order{}, findErr
		}
		return archived, ErrNotCancellable
	}
	return order, err
}
