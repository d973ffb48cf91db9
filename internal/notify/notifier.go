package notify

import (
	"context"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/observability/metrics"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// LanguageSource reports a participant's preferred language.
type LanguageSource interface {
	Language(identity string) (string, bool)
}

// ReviewPrompter asks a participant to rate a delivered order.
type ReviewPrompter interface {
	PromptReview(ctx context.Context, identity, orderID string)
}

// Notifier tells participants about order status changes. It is an
// orders.StatusObserver; send failures are logged, never returned.
type Notifier struct {
	sender      messaging.Sender
	texts       *catalog.Texts
	languages   LanguageSource
	prompter    ReviewPrompter
	defaultLang string
	logger      *logging.Logger
	metrics     *metrics.EngineMetrics
}

// NotifierOption customizes a Notifier.
type NotifierOption func(*Notifier)

// WithLanguageSource consults the conversation store before the order's own language.
func WithLanguageSource(src LanguageSource) NotifierOption {
	return func(n *Notifier) { n.languages = src }
}

// WithReviewPrompter asks for a rating once a delivered notice went out.
func WithReviewPrompter(p ReviewPrompter) NotifierOption {
	return func(n *Notifier) { n.prompter = p }
}

// WithDefaultLanguage sets the last-resort language.
func WithDefaultLanguage(lang string) NotifierOption {
	return func(n *Notifier) {
		if lang != "" {
			n.defaultLang = lang
		}
	}
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *logging.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithNotifierMetrics counts notification outcomes.
func WithNotifierMetrics(m *metrics.EngineMetrics) NotifierOption {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier creates a Notifier sending through sender.
func NewNotifier(sender messaging.Sender, texts *catalog.Texts, opts ...NotifierOption) *Notifier {
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if texts == nil {
		texts = catalog.NewTexts("", nil)
	}
	n := &Notifier{
		sender:      sender,
		texts:       texts,
		defaultLang: catalog.LangArabic,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// OnStatusChange sends the status template for to, or the generic update
// when the status has no template of its own.
func (n *Notifier) OnStatusChange(ctx context.Context, order orders.Order, from, to orders.Status) {
	if from == to {
		return
	}
	lang := n.languageFor(order)
	vars := map[string]string{
		"id":     order.ID,
		"status": n.texts.StatusLabel(lang, string(to)),
	}
	key := "status_" + string(to)
	if !n.texts.Has(key) {
		key = catalog.MsgStatusGeneric
	}

	msg := messaging.OutboundMessage{Text: n.texts.Render(lang, key, vars)}
	if err := n.sender.Send(ctx, order.Identity, msg); err != nil {
		n.logger.Warn("order status notification failed", "order_id", order.ID, "identity", order.Identity, "status", string(to), "error", err)
		n.metrics.ObserveNotification("failed")
		return
	}
	n.metrics.ObserveNotification("sent")
	n.logger.Info("order status notification sent", "order_id", order.ID, "identity", order.Identity, "status", string(to))

	if to == orders.StatusDelivered && n.prompter != nil {
		n.prompter.PromptReview(ctx, order.Identity, order.ID)
	}
}

func (n *Notifier) languageFor(order orders.Order) string {
	if n.languages != nil {
		if lang, ok := n.languages.Language(order.Identity); ok {
			return lang
		}
	}
	if order.Language != "" {
		return order.Language
	}
	return n.defaultLang
}

var _ orders.StatusObserver = (*Notifier)(nil)
