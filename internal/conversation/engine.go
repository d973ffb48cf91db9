package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Config holds the engine's timing and behavior switches.
type Config struct {
	InactivityTimeout   time.Duration
	StaleEventThreshold time.Duration
	FeedbackWindow      time.Duration
	SubmissionGrace     time.Duration
	LanguageSelection   bool
	DefaultLanguage     string
	RequirePaymentProof bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout:   5 * time.Minute,
		StaleEventThreshold: 15 * time.Minute,
		FeedbackWindow:      10 * time.Minute,
		SubmissionGrace:     2 * time.Minute,
		DefaultLanguage:     catalog.LangArabic,
		RequirePaymentProof: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = d.InactivityTimeout
	}
	if c.StaleEventThreshold <= 0 {
		c.StaleEventThreshold = d.StaleEventThreshold
	}
	if c.FeedbackWindow <= 0 {
		c.FeedbackWindow = d.FeedbackWindow
	}
	if c.SubmissionGrace < 0 {
		c.SubmissionGrace = 0
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	return c
}

// CatalogSource supplies the menu content the flows render.
type CatalogSource interface {
	Options(ctx context.Context) catalog.Options
	ActiveOffers(ctx context.Context) []catalog.Offer
	MenuImages(ctx context.Context) []catalog.MenuImage
}

// OperatorAlerts tells shop staff about work waiting for them. Calls are
// best effort; implementations log their own failures.
type OperatorAlerts interface {
	OrderPlaced(ctx context.Context, order orders.Order)
	SupportRequested(ctx context.Context, session support.Session, escalated bool)
}

// Engine runs the per-identity conversation state machine.
type Engine struct {
	cfg      Config
	store    *Store
	sessions *support.Registry
	orders   *orders.Service
	ledger   *orders.Ledger
	catalog  CatalogSource
	texts    *catalog.Texts
	reviews  reviews.Store
	alerts   OperatorAlerts
	sender   messaging.Sender
	exec     Executor
	clock    clock.Clock
	logger   *logging.Logger
	metrics  *metrics.EngineMetrics

	escalatedMu sync.Mutex
	escalated   map[string]struct{}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithConfig sets timing and behavior switches. Zero durations keep defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.withDefaults()
	}
}

// WithCatalog sets the menu source. Defaults to the built-in menu.
func WithCatalog(src CatalogSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.catalog = src
		}
	}
}

// WithTexts sets the localized message renderer.
func WithTexts(t *catalog.Texts) Option {
	return func(e *Engine) {
		if t != nil {
			e.texts = t
		}
	}
}

// WithReviews sets where ratings are stored. Defaults to memory.
func WithReviews(store reviews.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.reviews = store
		}
	}
}

// WithOperatorAlerts wires staff notifications for new orders and support requests.
func WithOperatorAlerts(a OperatorAlerts) Option {
	return func(e *Engine) {
		e.alerts = a
	}
}

// WithExecutor sets how timer callbacks and review prompts reach an
// identity's lane. Defaults to an InlineExecutor.
func WithExecutor(x Executor) Option {
	return func(e *Engine) {
		if x != nil {
			e.exec = x
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records engine metrics.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine wires the engine to its stores and registers itself as the
// session expiry handler.
func NewEngine(store *Store, sessions *support.Registry, orderSvc *orders.Service, sender messaging.Sender, opts ...Option) *Engine {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if sessions == nil {
		panic("conversation: session registry cannot be nil")
	}
	if orderSvc == nil {
		panic("conversation: order service cannot be nil")
	}
	if sender == nil {
		panic("conversation: sender cannot be nil")
	}
	e := &Engine{
		cfg:       DefaultConfig(),
		store:     store,
		sessions:  sessions,
		orders:    orderSvc,
		ledger:    orderSvc.Ledger(),
		catalog:   staticCatalog{opts: catalog.DefaultOptions()},
		texts:     catalog.NewTexts("", nil),
		reviews:   reviews.NewMemoryStore(),
		sender:    sender,
		exec:      NewInlineExecutor(),
		clock:     clock.Real(),
		logger:    logging.Default(),
		escalated: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	sessions.OnExpire(e.onSessionExpired)
	return e
}

// Handle processes one inbound event. Callers must not run two Handle calls
// for the same identity concurrently; the Dispatcher guarantees this.
func (e *Engine) Handle(ctx context.Context, evt messaging.InboundEvent) {
	now := e.clock.Now()
	identity := evt.Identity
	logger := e.logger.With("identity", identity, "event_id", evt.ID)

	if !evt.Timestamp.IsZero() && now.Sub(evt.Timestamp) > e.cfg.StaleEventThreshold {
		logger.Info("dropping stale event", "age", now.Sub(evt.Timestamp).String())
		e.metrics.ObserveEvent("stale")
		return
	}

	raw := strings.TrimSpace(eventText(evt))
	input := NormalizeInput(raw)

	if code, ok := parseEndCommand(input); ok && evt.Kind == messaging.KindText {
		e.handleEndCommand(ctx, evt, code)
		e.metrics.ObserveEvent("end_command")
		return
	}
	if evt.FromOperator {
		e.metrics.ObserveEvent("ignored")
		return
	}

	entry, bound := e.store.Get(identity)
	lang := e.languageOf(entry)

	if evt.Kind == messaging.KindText && isResetToken(input) {
		e.reset(ctx, identity, entry, bound, lang, now)
		e.metrics.ObserveEvent("reset")
		return
	}
	if !bound {
		e.greet(ctx, identity, now)
		e.metrics.ObserveEvent("greeted")
		return
	}

	switch entry.State.Kind {
	case StateCustomerService:
		if input == escalateToken {
			e.escalate(ctx, identity, lang)
		}
		e.store.Touch(identity, now)
		e.metrics.ObserveEvent("inert")
		return
	case StateSubmitted:
		if e.inGrace(entry, now) {
			e.metrics.ObserveEvent("inert")
			return
		}
		e.restart(ctx, identity, entry, lang, now)
		e.metrics.ObserveEvent("restarted")
		return
	}

	if e.inactive(entry, now) {
		logger.Info("conversation reset after inactivity", "state", entry.State.String())
		e.restart(ctx, identity, entry, lang, now)
		e.metrics.ObserveEvent("restarted")
		return
	}

	out, err := e.step(ctx, turn{
		evt:      evt,
		identity: identity,
		raw:      raw,
		input:    input,
		entry:    entry,
		lang:     lang,
		now:      now,
	})
	if err != nil {
		logger.Error("conversation step failed", "state", entry.State.String(), "error", err)
		e.metrics.ObserveEvent("error")
		return
	}

	e.apply(ctx, identity, entry.State, out, now)
	if !(entry.State.Kind == StateAwaitingPaymentProof && evt.Kind == messaging.KindImage) {
		e.store.Touch(identity, now)
	}
	e.metrics.ObserveEvent("processed")
}

// EndSession closes support session id and returns its owner to the main
// menu. With notify the owner is told once that the session ended. The
// owner's state changes on the owner's lane and EndSession waits for it, so
// it must not be called from inside a conversation job.
func (e *Engine) EndSession(ctx context.Context, id string, notify bool) (support.Session, error) {
	s, err := e.sessions.End(ctx, id)
	if err != nil {
		return support.Session{}, err
	}
	done := make(chan struct{})
	if err := e.exec.Submit(s.Identity, func(jobCtx context.Context) {
		defer close(done)
		e.closeSession(jobCtx, s, notify, "admin")
	}); err != nil {
		return s, err
	}
	select {
	case <-done:
		return s, nil
	case <-ctx.Done():
		return s, ctx.Err()
	}
}

// StartCustomerService opens a support session for identity on behalf of
// staff and binds the identity to CustomerService. It runs on the identity's
// lane and waits for the result, so it must not be called from inside a
// conversation job.
func (e *Engine) StartCustomerService(ctx context.Context, identity string, kind support.Kind) (support.Session, error) {
	type result struct {
		session support.Session
		err     error
	}
	done := make(chan result, 1)
	if err := e.exec.Submit(identity, func(jobCtx context.Context) {
		s, err := e.openSession(jobCtx, identity, kind)
		done <- result{session: s, err: err}
	}); err != nil {
		return support.Session{}, err
	}
	select {
	case r := <-done:
		return r.session, r.err
	case <-ctx.Done():
		return support.Session{}, ctx.Err()
	}
}

// PromptReview asks identity to rate a delivered order once the identity is
// idle. It is queued on the identity's lane and returns immediately.
func (e *Engine) PromptReview(_ context.Context, identity, orderID string) {
	e.exec.Submit(identity, func(ctx context.Context) {
		e.promptReview(ctx, identity, orderID)
	})
}

// Language returns the identity's preferred language, if it is known.
func (e *Engine) Language(identity string) (string, bool) {
	return e.store.Language(identity)
}

// Stats summarizes live conversations.
type Stats struct {
	Conversations int               `json:"conversations"`
	ByState       map[StateKind]int `json:"by_state"`
	LiveSessions  int               `json:"live_sessions"`
}

// Stats reports how many identities are bound and where they are.
func (e *Engine) Stats() Stats {
	return Stats{
		Conversations: e.store.Len(),
		ByState:       e.store.CountByState(),
		LiveSessions:  e.sessions.Len(),
	}
}

// RestoreSessions reloads persisted support sessions and binds their owners
// to CustomerService.
func (e *Engine) RestoreSessions(ctx context.Context) error {
	restored, err := e.sessions.Restore(ctx)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, s := range restored {
		e.store.Set(s.Identity, State{Kind: StateCustomerService}, Payload{}, now)
		if _, ok := e.store.Language(s.Identity); !ok {
			e.store.SetLanguage(s.Identity, e.cfg.DefaultLanguage)
		}
		e.store.Touch(s.Identity, now)
	}
	e.metrics.SetLiveSessions(e.sessions.Len())
	if len(restored) > 0 {
		e.logger.Info("support sessions restored", "count", len(restored))
	}
	return nil
}

func (e *Engine) onSessionExpired(s support.Session) {
	e.exec.Submit(s.Identity, func(ctx context.Context) {
		ended, err := e.sessions.Expire(ctx, s)
		if err != nil {
			return
		}
		e.closeSession(ctx, ended, true, "expired")
	})
}

func (e *Engine) handleEndCommand(ctx context.Context, evt messaging.InboundEvent, code string) {
	senderLang := e.languageOf(e.entryOf(evt.Identity))
	s, err := e.sessions.End(ctx, code)
	if err != nil {
		if !errors.Is(err, support.ErrSessionNotFound) {
			e.logger.Error("failed to end support session", "session_id", code, "error", err)
			return
		}
		if !evt.FromOperator {
			e.send(ctx, evt.Identity, text(e.texts.Render(senderLang, catalog.MsgSessionUnknown, map[string]string{"code": code})))
		}
		return
	}
	if s.Identity == evt.Identity {
		e.closeSession(ctx, s, true, "command")
		return
	}
	// The owner's state belongs to the owner's lane.
	if err := e.exec.Submit(s.Identity, func(jobCtx context.Context) {
		e.closeSession(jobCtx, s, true, "command")
	}); err != nil {
		e.logger.Error("could not close support session", "session_id", s.ID, "error", err)
	}
	e.send(ctx, evt.Identity, text(e.texts.Render(senderLang, catalog.MsgSessionEndConfirm, map[string]string{"code": code})))
}

// closeSession finishes a session already removed from the registry.
func (e *Engine) closeSession(ctx context.Context, s support.Session, notify bool, reason string) {
	e.escalatedMu.Lock()
	delete(e.escalated, s.ID)
	e.escalatedMu.Unlock()
	e.metrics.ObserveSessionEnded(reason)
	e.metrics.SetLiveSessions(e.sessions.Len())
	e.logger.Info("support session ended", "session_id", s.ID, "identity", s.Identity, "reason", reason)

	if len(e.sessions.ListByIdentity(s.Identity)) > 0 {
		return
	}
	now := e.clock.Now()
	entry, _ := e.store.Get(s.Identity)
	e.store.Set(s.Identity, MainMenu(), Payload{}, now)
	e.metrics.ObserveTransition(string(entry.State.Kind), string(StateMainMenu))
	if notify {
		lang := e.languageOf(entry)
		e.send(ctx, s.Identity,
			text(e.texts.Render(lang, catalog.MsgSessionEnded, nil)),
			text(e.menuText(ctx, lang)),
		)
	}
	e.store.Touch(s.Identity, now)
}

func (e *Engine) openSession(ctx context.Context, identity string, kind support.Kind) (support.Session, error) {
	s, err := e.sessions.Start(ctx, identity, kind)
	if err != nil {
		return support.Session{}, err
	}
	now := e.clock.Now()
	entry, bound := e.store.Get(identity)
	e.store.Set(identity, State{Kind: StateCustomerService}, Payload{}, now)
	if !bound {
		e.store.SetLanguage(identity, e.cfg.DefaultLanguage)
	}
	e.metrics.ObserveTransition(string(entry.State.Kind), string(StateCustomerService))
	e.metrics.SetLiveSessions(e.sessions.Len())
	lang := e.languageOf(entry)
	e.send(ctx, identity, text(e.texts.Render(lang, catalog.MsgSupportStarted, map[string]string{"code": s.ID})))
	if e.alerts != nil && kind == support.KindCustomer {
		e.alerts.SupportRequested(ctx, s, false)
	}
	e.store.Touch(identity, now)
	return s, nil
}

func (e *Engine) escalate(ctx context.Context, identity, lang string) {
	live := e.sessions.ListByIdentity(identity)
	if len(live) == 0 {
		return
	}
	s := live[len(live)-1]
	e.escalatedMu.Lock()
	_, already := e.escalated[s.ID]
	e.escalated[s.ID] = struct{}{}
	e.escalatedMu.Unlock()
	if already {
		e.send(ctx, identity, text(e.texts.Render(lang, catalog.MsgSupportWaiting, nil)))
		return
	}
	if e.alerts != nil {
		e.alerts.SupportRequested(ctx, s, true)
	}
	e.send(ctx, identity, text(e.texts.Render(lang, catalog.MsgSupportEscalated, nil)))
}

func (e *Engine) reset(ctx context.Context, identity string, entry Entry, bound bool, lang string, now time.Time) {
	for _, s := range e.sessions.ListByIdentity(identity) {
		ended, err := e.sessions.End(ctx, s.ID)
		if err != nil {
			continue
		}
		e.escalatedMu.Lock()
		delete(e.escalated, ended.ID)
		e.escalatedMu.Unlock()
		e.metrics.ObserveSessionEnded("reset")
	}
	e.metrics.SetLiveSessions(e.sessions.Len())
	if bound && entry.State.Kind == StateAwaitingFeedback {
		e.logger.Info("feedback skipped by reset", "identity", identity, "review_id", entry.Payload.ReviewID)
	}

	e.store.Set(identity, MainMenu(), Payload{}, now)
	if !bound {
		e.store.SetLanguage(identity, lang)
	}
	e.metrics.ObserveTransition(string(entry.State.Kind), string(StateMainMenu))
	e.send(ctx, identity, text(e.welcomeText(ctx, lang)))
	e.store.Touch(identity, now)
}

func (e *Engine) greet(ctx context.Context, identity string, now time.Time) {
	lang := e.cfg.DefaultLanguage
	if e.cfg.LanguageSelection {
		e.store.Set(identity, State{Kind: StateAwaitingLanguage}, Payload{}, now)
		e.store.SetLanguage(identity, lang)
		e.send(ctx, identity, text(e.texts.Render(lang, catalog.MsgChooseLanguage, nil)))
	} else {
		e.store.Set(identity, MainMenu(), Payload{}, now)
		e.store.SetLanguage(identity, lang)
		e.send(ctx, identity, text(e.welcomeText(ctx, lang)))
	}
	e.store.Touch(identity, now)
}

// restart rebinds MainMenu and resends the welcome without interpreting the input.
func (e *Engine) restart(ctx context.Context, identity string, entry Entry, lang string, now time.Time) {
	e.store.Set(identity, MainMenu(), Payload{}, now)
	e.metrics.ObserveTransition(string(entry.State.Kind), string(StateMainMenu))
	e.send(ctx, identity, text(e.welcomeText(ctx, lang)))
	e.store.Touch(identity, now)
}

func (e *Engine) promptReview(ctx context.Context, identity, orderID string) {
	entry, bound := e.store.Get(identity)
	if bound && entry.State.Kind != StateMainMenu && entry.State.Kind != StateSubmitted {
		e.logger.Info("review prompt skipped, conversation busy", "identity", identity, "order_id", orderID, "state", entry.State.String())
		return
	}
	now := e.clock.Now()
	e.store.Set(identity, AwaitingRating(orderID), Payload{}, now)
	lang := e.languageOf(entry)
	if !bound {
		if order, err := e.ledger.Find(ctx, orderID); err == nil && order.Language != "" {
			lang = order.Language
		}
		e.store.SetLanguage(identity, lang)
	}
	e.metrics.ObserveTransition(string(entry.State.Kind), string(StateAwaitingRating))
	e.send(ctx, identity, text(e.texts.Render(lang, catalog.MsgRatingPrompt, map[string]string{"id": orderID})))
	e.store.Touch(identity, now)
}

func (e *Engine) armFeedbackTimer(identity, orderID, reviewID string) {
	t := e.clock.AfterFunc(e.cfg.FeedbackWindow, func() {
		e.exec.Submit(identity, func(ctx context.Context) {
			e.closeFeedback(identity, orderID, reviewID)
		})
	})
	e.store.SetFeedbackTimer(identity, t)
}

// closeFeedback ends the feedback window silently. The rating was stored
// when it was given.
func (e *Engine) closeFeedback(identity, orderID, reviewID string) {
	entry, ok := e.store.Get(identity)
	if !ok || entry.State != AwaitingFeedback(orderID) || entry.Payload.ReviewID != reviewID {
		return
	}
	e.store.Set(identity, MainMenu(), Payload{}, e.clock.Now())
	e.metrics.ObserveTransition(string(StateAwaitingFeedback), string(StateMainMenu))
	e.logger.Info("feedback window closed", "identity", identity, "order_id", orderID, "review_id", reviewID)
}

func (e *Engine) apply(ctx context.Context, identity string, from State, out outcome, now time.Time) {
	if !out.keep {
		e.store.Set(identity, out.next, out.payload, now)
		e.metrics.ObserveTransition(string(from.Kind), string(out.next.Kind))
	}
	if out.after != nil {
		out.after(ctx)
	}
	e.send(ctx, identity, out.replies...)
}

// send delivers msgs in order and stops at the first failure so the
// participant never sees a later message without an earlier one.
func (e *Engine) send(ctx context.Context, identity string, msgs ...messaging.OutboundMessage) {
	for _, msg := range msgs {
		if msg.Text == "" && msg.ImageURL == "" {
			continue
		}
		if err := e.sender.Send(ctx, identity, msg); err != nil {
			e.logger.Warn("failed to send reply", "identity", identity, "error", err)
			return
		}
	}
}

func (e *Engine) entryOf(identity string) Entry {
	entry, _ := e.store.Get(identity)
	return entry
}

func (e *Engine) languageOf(entry Entry) string {
	if entry.Language != "" {
		return entry.Language
	}
	return e.cfg.DefaultLanguage
}

func (e *Engine) inGrace(entry Entry, now time.Time) bool {
	return !entry.SubmittedAt.IsZero() && now.Sub(entry.SubmittedAt) < e.cfg.SubmissionGrace
}

func (e *Engine) inactive(entry Entry, now time.Time) bool {
	switch entry.State.Kind {
	case StateCustomerService, StateAwaitingPaymentProof:
		return false
	}
	return !entry.LastActivity.IsZero() && now.Sub(entry.LastActivity) > e.cfg.InactivityTimeout
}

func (e *Engine) welcomeText(ctx context.Context, lang string) string {
	return e.texts.Render(lang, catalog.MsgWelcome, nil) + "\n\n" + e.menuText(ctx, lang)
}

func (e *Engine) menuText(ctx context.Context, lang string) string {
	return catalog.RenderList(e.catalog.Options(ctx).MainMenu, lang)
}

func eventText(evt messaging.InboundEvent) string {
	switch evt.Kind {
	case messaging.KindText:
		return evt.Text
	case messaging.KindImage:
		if evt.Image != nil {
			return evt.Image.Caption
		}
	case messaging.KindCatalogOrder:
		if evt.Catalog != nil {
			return strings.Join(messaging.FlattenCatalogOrder(*evt.Catalog), "\n")
		}
	}
	return ""
}

func text(s string) messaging.OutboundMessage {
	return messaging.OutboundMessage{Text: s}
}

type staticCatalog struct {
	opts catalog.Options
}

func (c staticCatalog) Options(context.Context) catalog.Options        { return c.opts }
func (c staticCatalog) ActiveOffers(context.Context) []catalog.Offer   { return nil }
func (c staticCatalog) MenuImages(context.Context) []catalog.MenuImage { return nil }
