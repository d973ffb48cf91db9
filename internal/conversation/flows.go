package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
)

// turn is one input as seen by a flow.
type turn struct {
	evt      messaging.InboundEvent
	identity string
	raw      string
	input    string
	entry    Entry
	lang     string
	now      time.Time
}

// outcome is what a flow decided. Durable side effects have already
// happened by the time a flow returns one; the engine then commits the state,
// runs after and sends the replies.
type outcome struct {
	next    State
	payload Payload
	keep    bool
	replies []messaging.OutboundMessage
	after   func(ctx context.Context)
}

func move(next State, payload Payload, replies ...string) outcome {
	return outcome{next: next, payload: payload, replies: textMessages(replies)}
}

func stay(replies ...string) outcome {
	return outcome{keep: true, replies: textMessages(replies)}
}

func textMessages(list []string) []messaging.OutboundMessage {
	out := make([]messaging.OutboundMessage, 0, len(list))
	for _, s := range list {
		out = append(out, text(s))
	}
	return out
}

func (e *Engine) render(t turn, key string, vars map[string]string) string {
	return e.texts.Render(t.lang, key, vars)
}

func (e *Engine) invalid(t turn) outcome {
	return stay(e.render(t, catalog.MsgInvalidOption, nil))
}

// step is the transition table.
func (e *Engine) step(ctx context.Context, t turn) (outcome, error) {
	if t.evt.Kind == messaging.KindCatalogOrder {
		switch t.entry.State.Kind {
		case StateMainMenu, StateSubMenu, StateAwaitingOrderDetails:
			return e.catalogOrder(t), nil
		}
	}

	switch t.entry.State.Kind {
	case StateAwaitingLanguage:
		return e.chooseLanguage(ctx, t), nil
	case StateMainMenu:
		return e.mainMenuChoice(ctx, t)
	case StateSubMenu:
		return e.subMenuChoice(ctx, t)
	case StateAwaitingOrderDetails:
		return e.collectDetails(t), nil
	case StateAwaitingName:
		return e.collectName(ctx, t)
	case StateAwaitingPaymentProof:
		return e.collectProof(t), nil
	case StateConfirmPayment:
		return e.confirmPayment(ctx, t)
	case StateOrderInquiry:
		return e.inquire(ctx, t)
	case StateConfirmCancel:
		return e.confirmCancel(ctx, t)
	case StateAwaitingRating:
		return e.rate(ctx, t)
	case StateAwaitingFeedback:
		return e.feedback(ctx, t)
	case StateCustomerService, StateSubmitted:
		return outcome{keep: true}, nil
	}

	e.logger.Warn("unknown conversation state, restarting", "identity", t.identity, "state", t.entry.State.String())
	return move(MainMenu(), Payload{}, e.welcomeText(ctx, t.lang)), nil
}

func (e *Engine) chooseLanguage(ctx context.Context, t turn) outcome {
	var lang string
	switch t.input {
	case "1":
		lang = catalog.LangArabic
	case "2":
		lang = catalog.LangEnglish
	default:
		return stay(e.render(t, catalog.MsgChooseLanguage, nil))
	}
	out := move(MainMenu(), Payload{}, e.welcomeText(ctx, lang))
	out.after = func(context.Context) { e.store.SetLanguage(t.identity, lang) }
	return out
}

func (e *Engine) mainMenuChoice(ctx context.Context, t turn) (outcome, error) {
	opt, ok := e.catalog.Options(ctx).Find(t.input)
	if !ok {
		return e.invalid(t), nil
	}
	return e.selectOption(ctx, t, opt, opt.ID)
}

func (e *Engine) subMenuChoice(ctx context.Context, t turn) (outcome, error) {
	path := t.entry.State.Param
	parent, ok := resolvePath(e.catalog.Options(ctx), path)
	if !ok {
		return move(MainMenu(), Payload{}, e.welcomeText(ctx, t.lang)), nil
	}
	sub, ok := findIn(parent.SubOptions, t.input)
	if !ok {
		return stay(
			e.render(t, catalog.MsgInvalidOption, nil),
			catalog.RenderList(parent.SubOptions, t.lang),
		), nil
	}
	if parent.Action == catalog.ActionOrder {
		payload := t.entry.Payload
		payload.Filling = sub.Label.In(t.lang)
		return move(State{Kind: StateAwaitingOrderDetails}, payload, e.render(t, catalog.MsgOrderPrompt, nil)), nil
	}
	return e.selectOption(ctx, t, sub, path+"/"+sub.ID)
}

// selectOption performs the action of a menu option reached via path.
func (e *Engine) selectOption(ctx context.Context, t turn, opt catalog.Option, path string) (outcome, error) {
	switch opt.Action {
	case catalog.ActionShowMenu:
		images := e.catalog.MenuImages(ctx)
		out := move(MainMenu(), Payload{})
		if len(images) == 0 {
			out.replies = append(out.replies, text(e.render(t, catalog.MsgNoMenu, nil)))
		}
		for _, img := range images {
			out.replies = append(out.replies, messaging.OutboundMessage{ImageURL: img.URL, Caption: img.Caption})
		}
		out.replies = append(out.replies, text(e.menuText(ctx, t.lang)))
		return out, nil

	case catalog.ActionOrder:
		if len(opt.SubOptions) > 0 {
			return move(SubMenu(path), Payload{},
				e.render(t, catalog.MsgChooseFilling, nil)+"\n"+catalog.RenderList(opt.SubOptions, t.lang),
			), nil
		}
		return move(State{Kind: StateAwaitingOrderDetails}, Payload{}, e.render(t, catalog.MsgOrderPrompt, nil)), nil

	case catalog.ActionTrack:
		return move(State{Kind: StateOrderInquiry}, Payload{}, e.render(t, catalog.MsgInquiryPrompt, nil)), nil

	case catalog.ActionOffers:
		offers := e.catalog.ActiveOffers(ctx)
		body := e.render(t, catalog.MsgNoOffers, nil)
		if len(offers) > 0 {
			body = e.render(t, catalog.MsgOffersHeader, nil) + "\n\n" + catalog.RenderOffers(offers)
		}
		return move(MainMenu(), Payload{}, body, e.menuText(ctx, t.lang)), nil

	case catalog.ActionSupport:
		return e.requestSupport(ctx, t)

	case catalog.ActionReply:
		if reply := opt.Response.In(t.lang); reply != "" {
			return move(MainMenu(), Payload{}, reply), nil
		}
	}

	if len(opt.SubOptions) > 0 {
		return move(SubMenu(path), Payload{}, catalog.RenderList(opt.SubOptions, t.lang)), nil
	}
	if reply := opt.Response.In(t.lang); reply != "" {
		return move(MainMenu(), Payload{}, reply), nil
	}
	return e.invalid(t), nil
}

func (e *Engine) requestSupport(ctx context.Context, t turn) (outcome, error) {
	s, err := e.sessions.Start(ctx, t.identity, support.KindCustomer)
	if errors.Is(err, support.ErrCodeSpaceExhausted) {
		return stay(e.render(t, catalog.MsgSupportBusy, nil)), nil
	}
	if err != nil {
		return outcome{}, err
	}
	out := move(State{Kind: StateCustomerService}, Payload{},
		e.render(t, catalog.MsgSupportStarted, map[string]string{"code": s.ID}))
	out.after = func(ctx context.Context) {
		e.metrics.SetLiveSessions(e.sessions.Len())
		if e.alerts != nil {
			e.alerts.SupportRequested(ctx, s, false)
		}
	}
	return out, nil
}

func (e *Engine) catalogOrder(t turn) outcome {
	payload := t.entry.Payload
	if t.entry.State.Kind == StateMainMenu {
		payload = Payload{}
	}
	payload.Lines = append(payload.Lines, messaging.FlattenCatalogOrder(*t.evt.Catalog)...)
	payload.FromCatalog = true
	return move(State{Kind: StateAwaitingName}, payload, e.render(t, catalog.MsgAskName, nil))
}

func (e *Engine) collectDetails(t turn) outcome {
	if t.evt.Kind != messaging.KindText || t.raw == "" {
		return stay(e.render(t, catalog.MsgOrderPrompt, nil))
	}
	payload := t.entry.Payload
	if isDoneToken(t.input) {
		if len(payload.Lines) == 0 {
			return stay(e.render(t, catalog.MsgOrderEmpty, nil))
		}
		return move(State{Kind: StateAwaitingName}, payload, e.render(t, catalog.MsgAskName, nil))
	}
	for _, line := range strings.Split(t.raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			payload.Lines = append(payload.Lines, line)
		}
	}
	return move(State{Kind: StateAwaitingOrderDetails}, payload, e.render(t, catalog.MsgOrderLineAdded, nil))
}

func (e *Engine) collectName(ctx context.Context, t turn) (outcome, error) {
	if t.evt.Kind != messaging.KindText || t.raw == "" {
		return stay(e.render(t, catalog.MsgAskName, nil)), nil
	}
	payload := t.entry.Payload
	payload.Name = t.raw
	payload.OrderID = e.ledger.NewID()

	summary := e.render(t, catalog.MsgOrderSummary, map[string]string{
		"id":      payload.OrderID,
		"name":    payload.Name,
		"details": orderDetails(payload),
	})
	if e.cfg.RequirePaymentProof {
		return move(State{Kind: StateAwaitingPaymentProof}, payload,
			summary, e.render(t, catalog.MsgProofRequest, nil)), nil
	}
	out, err := e.placeOrder(ctx, t, payload)
	if err != nil {
		return outcome{}, err
	}
	out.replies = append(textMessages([]string{summary}), out.replies...)
	return out, nil
}

func (e *Engine) collectProof(t turn) outcome {
	if t.evt.Kind != messaging.KindImage || t.evt.Image == nil {
		return stay(e.render(t, catalog.MsgProofReminder, nil))
	}
	payload := t.entry.Payload
	payload.ProofRef = t.evt.Image.Ref()
	return move(State{Kind: StateConfirmPayment}, payload, e.render(t, catalog.MsgConfirmPayment, nil))
}

func (e *Engine) confirmPayment(ctx context.Context, t turn) (outcome, error) {
	switch t.input {
	case "1":
		return e.placeOrder(ctx, t, t.entry.Payload)
	case "2":
		payload := t.entry.Payload
		payload.ProofRef = ""
		return move(State{Kind: StateAwaitingPaymentProof}, payload, e.render(t, catalog.MsgProofRequest, nil)), nil
	}
	return e.invalid(t), nil
}

// placeOrder writes the order and moves to Submitted. The confirmation quotes
// the stored id, which differs from the provisional one after a collision.
func (e *Engine) placeOrder(ctx context.Context, t turn, payload Payload) (outcome, error) {
	kind := orders.KindText
	if payload.FromCatalog {
		kind = orders.KindCatalog
	}
	order := orders.Order{
		ID:              payload.OrderID,
		Identity:        t.identity,
		Kind:            kind,
		Details:         strings.Join(payload.Lines, "\n"),
		Filling:         payload.Filling,
		Name:            payload.Name,
		Status:          orders.StatusPending,
		PaymentProofRef: payload.ProofRef,
		Language:        t.lang,
		CreatedAt:       t.now.UTC(),
	}
	id, err := e.ledger.Upsert(ctx, order)
	if err != nil {
		return outcome{}, err
	}
	order.ID = id

	out := move(State{Kind: StateSubmitted}, Payload{},
		e.render(t, catalog.MsgOrderSubmitted, map[string]string{"id": id}))
	out.after = func(ctx context.Context) {
		e.logger.Info("order placed", "identity", t.identity, "order_id", id)
		e.metrics.ObserveOrderTransition(string(orders.StatusPending))
		if e.alerts != nil {
			e.alerts.OrderPlaced(ctx, order)
		}
	}
	return out, nil
}

func (e *Engine) inquire(ctx context.Context, t turn) (outcome, error) {
	id := t.input
	if !isDigits(id) {
		return stay(e.render(t, catalog.MsgInquiryPrompt, nil)), nil
	}
	order, err := e.ledger.Find(ctx, id)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return move(MainMenu(), Payload{},
			e.render(t, catalog.MsgInquiryNotFound, map[string]string{"id": id}),
			e.menuText(ctx, t.lang),
		), nil
	}
	if err != nil {
		return outcome{}, err
	}

	status := e.render(t, catalog.MsgInquiryStatus, map[string]string{
		"id":     id,
		"status": e.texts.StatusLabel(t.lang, string(order.Status)),
	})
	if order.Identity == t.identity && order.Status.Cancellable() {
		return move(ConfirmCancel(id), Payload{OrderID: id},
			status, e.render(t, catalog.MsgConfirmCancel, map[string]string{"id": id})), nil
	}
	return move(MainMenu(), Payload{}, status, e.menuText(ctx, t.lang)), nil
}

// confirmCancel cancels through the order service so the status notice and
// archiving follow the same path as an admin change.
func (e *Engine) confirmCancel(ctx context.Context, t turn) (outcome, error) {
	id := t.entry.State.Param
	switch t.input {
	case "1":
		_, err := e.orders.Cancel(ctx, id)
		switch {
		case errors.Is(err, orders.ErrNotCancellable):
			return move(MainMenu(), Payload{},
				e.render(t, catalog.MsgCancelRefused, map[string]string{"id": id}),
				e.menuText(ctx, t.lang),
			), nil
		case errors.Is(err, orders.ErrOrderNotFound):
			return move(MainMenu(), Payload{},
				e.render(t, catalog.MsgInquiryNotFound, map[string]string{"id": id}),
				e.menuText(ctx, t.lang),
			), nil
		case err != nil:
			return outcome{}, err
		}
		return move(MainMenu(), Payload{}, e.menuText(ctx, t.lang)), nil
	case "2":
		return move(MainMenu(), Payload{}, e.menuText(ctx, t.lang)), nil
	}
	return e.invalid(t), nil
}

func (e *Engine) rate(ctx context.Context, t turn) (outcome, error) {
	orderID := t.entry.State.Param
	rating, err := strconv.Atoi(t.input)
	if err != nil || !reviews.ValidRating(rating) {
		return e.invalid(t), nil
	}
	review := reviews.Review{
		ID:        uuid.NewString(),
		Identity:  t.identity,
		OrderID:   orderID,
		Rating:    rating,
		CreatedAt: t.now.UTC(),
	}
	if err := e.reviews.Save(ctx, review); err != nil {
		return outcome{}, err
	}
	out := move(AwaitingFeedback(orderID), Payload{Rating: rating, ReviewID: review.ID},
		e.render(t, catalog.MsgFeedbackPrompt, nil))
	out.after = func(context.Context) {
		e.armFeedbackTimer(t.identity, orderID, review.ID)
	}
	return out, nil
}

func (e *Engine) feedback(ctx context.Context, t turn) (outcome, error) {
	if t.raw == "" {
		return stay(e.render(t, catalog.MsgFeedbackPrompt, nil)), nil
	}
	if err := e.reviews.AttachFeedback(ctx, t.entry.Payload.ReviewID, t.raw); err != nil {
		return outcome{}, err
	}
	return move(MainMenu(), Payload{},
		e.render(t, catalog.MsgFeedbackThanks, nil),
		e.menuText(ctx, t.lang),
	), nil
}

func orderDetails(p Payload) string {
	details := strings.Join(p.Lines, "\n")
	if p.Filling != "" {
		details = p.Filling + "\n" + details
	}
	return details
}

// resolvePath walks a "/"-separated option path from the main menu.
func resolvePath(opts catalog.Options, path string) (catalog.Option, bool) {
	ids := strings.Split(path, "/")
	opt, ok := opts.Find(ids[0])
	for _, id := range ids[1:] {
		if !ok {
			break
		}
		opt, ok = findIn(opt.SubOptions, id)
	}
	return opt, ok
}

func findIn(list []catalog.Option, id string) (catalog.Option, bool) {
	for _, opt := range list {
		if opt.ID == id {
			return opt, true
		}
	}
	return catalog.Option{}, false
}
