package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// Service e-mails shop staff about new orders and customers waiting for a
// human. Delivery is best effort: failures are logged per recipient.
type Service struct {
	email      EmailSender
	recipients []string
	shop       string
	logger     *logging.Logger
}

// NewService creates an operator alert service. A nil email sender or an
// empty recipient list turns every alert into a no-op.
func NewService(email EmailSender, recipients []string, shop string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{
		email:      email,
		recipients: cleaned,
		shop:       shop,
		logger:     logger,
	}
}

// OrderPlaced alerts staff about a submitted order.
func (s *Service) OrderPlaced(ctx context.Context, order orders.Order) {
	name := order.Name
	if name == "" {
		name = order.Identity
	}
	subject := fmt.Sprintf("🛒 New order %s - %s", order.ID, name)

	rows := [][2]string{
		{"Order", order.ID},
		{"Name", name},
		{"Customer", order.Identity},
		{"Chat", messaging.ChatLink(order.Identity)},
	}
	if order.Filling != "" {
		rows = append(rows, [2]string{"Filling", order.Filling})
	}
	rows = append(rows, [2]string{"Details", order.Details})
	if order.PaymentProofRef != "" {
		rows = append(rows, [2]string{"Payment proof", order.PaymentProofRef})
	}
	rows = append(rows, [2]string{"Placed", order.CreatedAt.Format("January 2, 2006 at 3:04 PM")})

	body := plainBody(rows, "Confirm the payment, then update the order status from the admin panel.", s.shop)
	htmlBody := htmlBody("🛒 New order", rows, s.shop)
	s.deliver(ctx, EmailMessage{Subject: subject, Body: body, HTML: htmlBody, Category: "order", Ref: order.ID})
}

// SupportRequested alerts staff that a customer opened a support session,
// or with escalated set, that the customer asked again.
func (s *Service) SupportRequested(ctx context.Context, session support.Session, escalated bool) {
	subject := fmt.Sprintf("👨‍💼 Customer service requested - session %s", session.ID)
	title := "👨‍💼 Customer service requested"
	if escalated {
		subject = fmt.Sprintf("⏰ Customer still waiting - session %s", session.ID)
		title = "⏰ Customer still waiting"
	}

	rows := [][2]string{
		{"Session", session.ID},
		{"Customer", session.Identity},
		{"Chat", messaging.ChatLink(session.Identity)},
		{"Expires", session.ExpiresAt.Format("January 2 at 3:04 PM")},
	}
	footer := fmt.Sprintf("Send \"end %s\" from any chat to close the session.", session.ID)
	category := "support"
	if escalated {
		category = "support-escalated"
	}
	s.deliver(ctx, EmailMessage{
		Subject:  subject,
		Body:     plainBody(rows, footer, s.shop),
		HTML:     htmlBody(title, rows, s.shop),
		Category: category,
		Ref:      session.ID,
	})
}

// deliver sends msg to every recipient.
func (s *Service) deliver(ctx context.Context, msg EmailMessage) {
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: operator email not configured, skipping alert", "category", msg.Category, "ref", msg.Ref)
		return
	}
	for _, recipient := range s.recipients {
		msg.To = recipient
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send operator email", "error", err, "to", recipient, "category", msg.Category, "ref", msg.Ref)
		}
	}
}

func plainBody(rows [][2]string, footer, shop string) string {
	var b strings.Builder
	for _, row := range rows {
		if strings.Contains(row[1], "\n") {
			fmt.Fprintf(&b, "%s:\n%s\n", row[0], row[1])
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", row[0], row[1])
	}
	b.WriteString("\n")
	b.WriteString(footer)
	if shop != "" {
		fmt.Fprintf(&b, "\n\n— %s", shop)
	}
	return b.String()
}

func htmlBody(title string, rows [][2]string, shop string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, `<h2 style="color: #92400e;">%s</h2>`, html.EscapeString(title))
	b.WriteString(`<table style="border-collapse: collapse; margin: 20px 0;">`)
	for _, row := range rows {
		value := html.EscapeString(row[1])
		if strings.HasPrefix(row[1], "https://") {
			value = fmt.Sprintf(`<a href="%s">%s</a>`, value, value)
		}
		value = strings.ReplaceAll(value, "\n", "<br>")
		fmt.Fprintf(&b, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(row[0]), value)
	}
	b.WriteString(`</table>`)
	if shop != "" {
		fmt.Fprintf(&b, `<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— %s</p>`, html.EscapeString(shop))
	}
	b.WriteString(`</div>`)
	return b.String()
}
