package conversation

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

var epoch = time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]messaging.OutboundMessage
	err  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]messaging.OutboundMessage)}
}

func (s *recordingSender) Send(_ context.Context, identity string, msg messaging.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent[identity] = append(s.sent[identity], msg)
	return nil
}

func (s *recordingSender) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// texts returns the text of every message sent to identity so far.
func (s *recordingSender) texts(identity string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent[identity]))
	for _, m := range s.sent[identity] {
		out = append(out, m.Text)
	}
	return out
}

func (s *recordingSender) messages(identity string) []messaging.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.OutboundMessage(nil), s.sent[identity]...)
}

func (s *recordingSender) count(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[identity])
}

func (s *recordingSender) last(identity string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sent[identity]
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1].Text
}

// since returns the texts sent to identity after the first n messages.
func (s *recordingSender) since(identity string, n int) []string {
	all := s.texts(identity)
	if n >= len(all) {
		return nil
	}
	return all[n:]
}

type supportAlert struct {
	session   support.Session
	escalated bool
}

type recordingAlerts struct {
	mu      sync.Mutex
	orders  []orders.Order
	support []supportAlert
}

func (a *recordingAlerts) OrderPlaced(_ context.Context, order orders.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, order)
}

func (a *recordingAlerts) SupportRequested(_ context.Context, s support.Session, escalated bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.support = append(a.support, supportAlert{session: s, escalated: escalated})
}

type fakeCatalog struct {
	opts   catalog.Options
	offers []catalog.Offer
	images []catalog.MenuImage
}

func (c fakeCatalog) Options(context.Context) catalog.Options        { return c.opts }
func (c fakeCatalog) ActiveOffers(context.Context) []catalog.Offer   { return c.offers }
func (c fakeCatalog) MenuImages(context.Context) []catalog.MenuImage { return c.images }

// sequence returns a generator yielding ids in order, then counting up from
// the last one.
func sequence(ids ...string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if next < len(ids) {
			id := ids[next]
			next++
			return id
		}
		n, _ := strconv.Atoi(ids[len(ids)-1])
		next++
		return strconv.Itoa(n + next)
	}
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *clock.FakeClock
	docs     *docstore.MemoryStore
	ledger   *orders.Ledger
	orders   *orders.Service
	changes  *[]orders.Status
	sessions *support.Registry
	store    *Store
	reviews  *reviews.MemoryStore
	texts    *catalog.Texts
	sender   *recordingSender
	alerts   *recordingAlerts
	engine   *Engine
	seq      int
}

type harnessOptions struct {
	cfg       Config
	catalog   CatalogSource
	exec      Executor
	ids       func() string
	codes     func() string
	docs      *docstore.MemoryStore
	persisted bool
}

type harnessOption func(*harnessOptions)

func withEngineConfig(fn func(*Config)) harnessOption {
	return func(o *harnessOptions) { fn(&o.cfg) }
}

func withTestCatalog(c CatalogSource) harnessOption {
	return func(o *harnessOptions) { o.catalog = c }
}

func withTestExecutor(x Executor) harnessOption {
	return func(o *harnessOptions) { o.exec = x }
}

func withOrderIDs(ids ...string) harnessOption {
	return func(o *harnessOptions) { o.ids = sequence(ids...) }
}

func withSessionCodes(codes ...string) harnessOption {
	return func(o *harnessOptions) { o.codes = sequence(codes...) }
}

func withSharedDocs(docs *docstore.MemoryStore) harnessOption {
	return func(o *harnessOptions) {
		o.docs = docs
		o.persisted = true
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{
		cfg:   DefaultConfig(),
		ids:   sequence("10000001"),
		codes: sequence("1001"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	fc := clock.Fake(epoch)
	docs := o.docs
	if docs == nil {
		docs = docstore.NewMemoryStore()
	}
	logger := logging.Discard()

	var changes []orders.Status
	ledger := orders.NewLedger(docs, orders.WithClock(fc), orders.WithIDGenerator(o.ids), orders.WithLogger(logger))
	svc := orders.NewService(ledger, logger, orders.ObserverFunc(func(_ context.Context, _ orders.Order, _, to orders.Status) {
		changes = append(changes, to)
	}))

	regOpts := []support.Option{
		support.WithClock(fc),
		support.WithLogger(logger),
		support.WithCodeGenerator(o.codes),
	}
	if o.persisted {
		regOpts = append(regOpts, support.WithStore(docs))
	}
	registry := support.NewRegistry(regOpts...)

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    fc,
		docs:     docs,
		ledger:   ledger,
		orders:   svc,
		changes:  &changes,
		sessions: registry,
		store:    NewStore(),
		reviews:  reviews.NewMemoryStore(),
		texts:    catalog.NewTexts("Coffee", nil),
		sender:   newRecordingSender(),
		alerts:   &recordingAlerts{},
	}

	engineOpts := []Option{
		WithConfig(o.cfg),
		WithTexts(h.texts),
		WithReviews(h.reviews),
		WithOperatorAlerts(h.alerts),
		WithClock(fc),
		WithLogger(logger),
	}
	if o.catalog != nil {
		engineOpts = append(engineOpts, WithCatalog(o.catalog))
	}
	if o.exec != nil {
		engineOpts = append(engineOpts, WithExecutor(o.exec))
	}
	h.engine = NewEngine(h.store, registry, svc, h.sender, engineOpts...)
	return h
}

func (h *harness) event(identity string, kind messaging.EventKind) messaging.InboundEvent {
	h.seq++
	return messaging.InboundEvent{
		ID:        "evt-" + strconv.Itoa(h.seq),
		Identity:  identity,
		Timestamp: h.clock.Now(),
		Kind:      kind,
	}
}

func (h *harness) say(identity string, texts ...string) {
	h.t.Helper()
	for _, s := range texts {
		evt := h.event(identity, messaging.KindText)
		evt.Text = s
		h.engine.Handle(h.ctx, evt)
	}
}

func (h *harness) operatorSays(identity, s string) {
	evt := h.event(identity, messaging.KindText)
	evt.Text = s
	evt.FromOperator = true
	h.engine.Handle(h.ctx, evt)
}

func (h *harness) sendImage(identity, url string) {
	evt := h.event(identity, messaging.KindImage)
	evt.Image = &messaging.Image{ID: "media-" + strconv.Itoa(h.seq), URL: url}
	h.engine.Handle(h.ctx, evt)
}

func (h *harness) sendCart(identity string, items ...messaging.CatalogItem) {
	evt := h.event(identity, messaging.KindCatalogOrder)
	evt.Catalog = &messaging.CatalogOrder{Items: items}
	h.engine.Handle(h.ctx, evt)
}

func (h *harness) state(identity string) State {
	h.t.Helper()
	entry, ok := h.store.Get(identity)
	if !ok {
		h.t.Fatalf("identity %s has no conversation state", identity)
	}
	return entry.State
}

func (h *harness) entry(identity string) Entry {
	h.t.Helper()
	entry, ok := h.store.Get(identity)
	if !ok {
		h.t.Fatalf("identity %s has no conversation state", identity)
	}
	return entry
}

func (h *harness) render(key string, vars map[string]string) string {
	return h.texts.Render(catalog.LangArabic, key, vars)
}

func (h *harness) menu() string {
	return catalog.RenderList(catalog.DefaultOptions().MainMenu, catalog.LangArabic)
}

func (h *harness) welcome() string {
	return h.render(catalog.MsgWelcome, nil) + "\n\n" + h.menu()
}

// placeTextOrder drives identity from first contact to Submitted with the
// payment proof step, returning the stored order id.
func (h *harness) placeTextOrder(identity string, lines ...string) string {
	h.t.Helper()
	h.say(identity, "hi", "1")
	h.say(identity, lines...)
	h.say(identity, "تم", "Sara")
	h.sendImage(identity, "https://media.example/receipt.jpg")
	h.say(identity, "1")
	if got := h.state(identity); got.Kind != StateSubmitted {
		h.t.Fatalf("expected Submitted after placing order, got %s", got)
	}
	list, err := h.ledger.List(h.ctx, orders.Filter{Identity: identity})
	if err != nil || len(list) == 0 {
		h.t.Fatalf("expected a stored order for %s: %v", identity, err)
	}
	return list[len(list)-1].ID
}
