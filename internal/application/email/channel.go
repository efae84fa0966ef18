package email

import (
	"context"
	"strings"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
)

// Sender hands one message to the mail transport.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Channel renders and sends notification emails. Transport errors become a
// failed outcome and are never returned.
type Channel struct {
	sender     Sender
	translator *i18n.Translator
}

func NewChannel(sender Sender, translator *i18n.Translator) *Channel {
	return &Channel{sender: sender, translator: translator}
}

func (c *Channel) Name() domain.Channel { return domain.ChannelEmail }

func (c *Channel) Deliver(ctx context.Context, d *domain.Delivery) domain.DeliveryOutcome {
	n := d.Notification
	out := domain.DeliveryOutcome{Channel: domain.ChannelEmail}
	if !d.Preference.Allows(domain.ChannelEmail, n.Category) {
		out.Status = domain.DeliverySkipped
		out.Detail = "disabled by preferences"
		return out
	}
	if d.Recipient == nil || d.Recipient.Email == "" {
		out.Status = domain.DeliverySkipped
		out.Detail = "no email address"
		return out
	}

	subject, body := c.Render(d.Language, n)
	if err := c.sender.SendEmail(ctx, d.Recipient.Email, subject, body); err != nil {
		out.Status = domain.DeliveryFailed
		out.Detail = err.Error()
		return out
	}
	out.Status = domain.DeliveryDelivered
	return out
}

// Render returns the email subject and body for n in lang. Email-specific
// keys are used when any catalog has them; otherwise the title and body keys.
func (c *Channel) Render(lang string, n *domain.Notification) (subject, body string) {
	subjectKey, bodyKey := n.TitleKey, n.BodyKey
	if k := n.Category.EmailSubjectKey(); c.translator.Has(k, lang) {
		subjectKey = k
	}
	if k := n.Category.EmailBodyKey(); c.translator.Has(k, lang) {
		bodyKey = k
	}
	subject = c.translator.Translate(subjectKey, lang, n.TranslationParams)
	body = c.translator.Translate(bodyKey, lang, n.TranslationParams)
	if fc := strings.TrimSpace(n.FallbackContent); fc != "" {
		body += "\n\n" + fc
	}
	return subject, body
}
