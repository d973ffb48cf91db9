package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// KeyOrders holds live orders.
	KeyOrders = "orders"
	// KeyArchive holds orders that reached a terminal status.
	KeyArchive = "orders_archive"

	maxIDAttempts = 1000
)

type ordersDoc struct {
	Orders []Order `json:"orders"`
}

// Ledger stores orders in two JSON documents. Every mutation is one
// read-modify-write cycle under a process-wide lock; it never caches.
type Ledger struct {
	mu     sync.Mutex
	store  docstore.Store
	clock  clock.Clock
	newID  func() string
	logger *logging.Logger
	tracer trace.Tracer
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithClock sets the time source used for CreatedAt and UpdatedAt.
func WithClock(c clock.Clock) LedgerOption {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithIDGenerator replaces the random 8-digit generator.
func WithIDGenerator(fn func() string) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// WithLogger sets the ledger logger.
func WithLogger(logger *logging.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger returns a Ledger over store.
func NewLedger(store docstore.Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:  store,
		clock:  clock.Real(),
		newID:  RandomID,
		logger: logging.Default(),
		tracer: otel.Tracer("coffee.internal.orders.ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RandomID returns an 8-digit numeric id without a leading zero.
func RandomID() string {
	return strconv.Itoa(10000000 + rand.IntN(90000000))
}

// NewID returns a provisional id. It is not reserved; Upsert may replace it.
func (l *Ledger) NewID() string {
	return l.newID()
}

// Upsert stores o and returns the id it was stored under. An order without an
// id, or whose id belongs to a different stored order, gets a fresh unique id.
// Re-submitting the same order replaces it in place.
func (l *Ledger) Upsert(ctx context.Context, o Order) (string, error) {
	ctx, span := l.tracer.Start(ctx, "orders.ledger.upsert")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	live, err := l.load(ctx, KeyOrders)
	if err != nil {
		return "", err
	}
	archived, err := l.load(ctx, KeyArchive)
	if err != nil {
		return "", err
	}

	idx := indexOf(live.Orders, o.ID)
	collides := idx >= 0 && !sameOrder(live.Orders[idx], o)
	if o.ID == "" || collides || indexOf(archived.Orders, o.ID) >= 0 {
		taken := make(map[string]struct{}, len(live.Orders)+len(archived.Orders))
		for _, existing := range live.Orders {
			taken[existing.ID] = struct{}{}
		}
		for _, existing := range archived.Orders {
			taken[existing.ID] = struct{}{}
		}
		previous := o.ID
		o.ID, err = l.unusedID(taken)
		if err != nil {
			return "", err
		}
		if previous != "" {
			l.logger.Info("order id regenerated", "provisional_id", previous, "order_id", o.ID)
		}
		idx = -1
	}

	now := l.clock.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusPending
	}

	if idx >= 0 {
		live.Orders[idx] = o
	} else {
		live.Orders = append(live.Orders, o)
	}
	if err := docstore.WriteJSON(ctx, l.store, KeyOrders, live); err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	return o.ID, nil
}

// Find returns the order with id, checking live orders before the archive.
func (l *Ledger) Find(ctx context.Context, id string) (Order, error) {
	live, err := l.load(ctx, KeyOrders)
	if err != nil {
		return Order{}, err
	}
	if i := indexOf(live.Orders, id); i >= 0 {
		return live.Orders[i], nil
	}
	archived, err := l.load(ctx, KeyArchive)
	if err != nil {
		return Order{}, err
	}
	if i := indexOf(archived.Orders, id); i >= 0 {
		return archived.Orders[i], nil
	}
	return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

// List returns live orders matching f. On a read failure it returns an empty
// slice together with the error.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Order, error) {
	return l.list(ctx, KeyOrders, f)
}

// ListArchived returns archived orders matching f.
func (l *Ledger) ListArchived(ctx context.Context, f Filter) ([]Order, error) {
	return l.list(ctx, KeyArchive, f)
}

func (l *Ledger) list(ctx context.Context, key string, f Filter) ([]Order, error) {
	doc, err := l.load(ctx, key)
	if err != nil {
		return []Order{}, err
	}
	out := make([]Order, 0, len(doc.Orders))
	for _, o := range doc.Orders {
		if f.match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

// SetStatus updates a live order's status and returns the updated order with
// its previous status. Setting the current status again writes nothing.
func (l *Ledger) SetStatus(ctx context.Context, id string, status Status) (Order, Status, error) {
	return l.SetStatusIf(ctx, id, status, nil)
}

// SetStatusIf is SetStatus guarded by allowed, which is checked against the
// current status while the ledger is locked. A refused change returns the
// unchanged order and ErrStatusRefused.
func (l *Ledger) SetStatusIf(ctx context.Context, id string, status Status, allowed func(Status) bool) (Order, Status, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Order{}, "", err
	}
	ctx, span := l.tracer.Start(ctx, "orders.ledger.set_status",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.status", string(status))))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	live, err := l.load(ctx, KeyOrders)
	if err != nil {
		return Order{}, "", err
	}
	i := indexOf(live.Orders, id)
	if i < 0 {
		return Order{}, "", fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	old := live.Orders[i].Status
	if allowed != nil && !allowed(old) {
		return live.Orders[i], old, fmt.Errorf("%w: %s is %s", ErrStatusRefused, id, old)
	}
	if old == status {
		return live.Orders[i], old, nil
	}
	live.Orders[i].Status = status
	live.Orders[i].UpdatedAt = l.clock.Now().UTC()
	if err := docstore.WriteJSON(ctx, l.store, KeyOrders, live); err != nil {
		span.RecordError(err)
		return Order{}, "", err
	}
	return live.Orders[i], old, nil
}

// Archive moves a terminal order from the live document to the archive. The
// archive is written first; if removing the order from the live document then
// fails, the archive entry is withdrawn so the order exists in exactly one
// place.
func (l *Ledger) Archive(ctx context.Context, id string) error {
	ctx, span := l.tracer.Start(ctx, "orders.ledger.archive", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	live, err := l.load(ctx, KeyOrders)
	if err != nil {
		return err
	}
	i := indexOf(live.Orders, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	order := live.Orders[i]
	if !order.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, id, order.Status)
	}

	archived, err := l.load(ctx, KeyArchive)
	if err != nil {
		return err
	}
	before := append([]Order(nil), archived.Orders...)
	if j := indexOf(archived.Orders, id); j >= 0 {
		archived.Orders[j] = order
	} else {
		archived.Orders = append(archived.Orders, order)
	}
	if err := docstore.WriteJSON(ctx, l.store, KeyArchive, archived); err != nil {
		span.RecordError(err)
		return err
	}

	live.Orders = append(live.Orders[:i], live.Orders[i+1:]...)
	if err := docstore.WriteJSON(ctx, l.store, KeyOrders, live); err != nil {
		span.RecordError(err)
		if rbErr := docstore.WriteJSON(ctx, l.store, KeyArchive, ordersDoc{Orders: before}); rbErr != nil {
			l.logger.Error("archive rollback failed", "order_id", id, "error", rbErr)
		}
		return err
	}
	return nil
}

// Delete removes a live order without archiving it.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	live, err := l.load(ctx, KeyOrders)
	if err != nil {
		return err
	}
	i := indexOf(live.Orders, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	live.Orders = append(live.Orders[:i], live.Orders[i+1:]...)
	return docstore.WriteJSON(ctx, l.store, KeyOrders, live)
}

func (l *Ledger) load(ctx context.Context, key string) (ordersDoc, error) {
	var doc ordersDoc
	if _, err := docstore.ReadJSON(ctx, l.store, key, &doc); err != nil {
		return ordersDoc{}, err
	}
	return doc, nil
}

func (l *Ledger) unusedID(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := l.newID()
		if _, used := taken[candidate]; !used && candidate != "" {
			return candidate, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

func indexOf(list []Order, id string) int {
	if id == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
