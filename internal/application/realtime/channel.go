package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
)

// Group returns the broadcast group a user's clients listen on.
func Group(userID string) string {
	return "notifications_" + userID
}

// Payload is the JSON frame pushed to connected clients.
type Payload struct {
	Type              string                `json:"type"`
	ID                string                `json:"id"`
	Category          domain.Category       `json:"category"`
	TitleKey          string                `json:"title_key"`
	BodyKey           string                `json:"body_key"`
	TranslationParams map[string]string     `json:"translation_params"`
	Title             string                `json:"title"`
	Body              string                `json:"body"`
	FallbackContent   string                `json:"fallback_content,omitempty"`
	CreatedAt         time.Time             `json:"created"`
	IsRead            bool                  `json:"is_read"`
	IsSeen            bool                  `json:"is_seen"`
	Priority          domain.Priority       `json:"priority"`
	Metadata          map[string]any        `json:"metadata,omitempty"`
	Related           *domain.ObjectRef     `json:"related_object,omitempty"`
	Sender            *domain.SenderSummary `json:"sender,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, group string, payload []byte) (int, error)
}

// Channel pushes notifications to the recipient's live connections. There
// is no replay: clients that are offline fetch unread items on reconnect.
type Channel struct {
	hub        publisher
	translator *i18n.Translator
}

func NewChannel(hub publisher, translator *i18n.Translator) *Channel {
	return &Channel{hub: hub, translator: translator}
}

func (c *Channel) Name() domain.Channel { return domain.ChannelRealtime }

// Deliver is gated by the push preferences; realtime has no toggle of its own.
func (c *Channel) Deliver(ctx context.Context, d *domain.Delivery) domain.DeliveryOutcome {
	n := d.Notification
	out := domain.DeliveryOutcome{Channel: domain.ChannelRealtime}
	if !d.Preference.Allows(domain.ChannelRealtime, n.Category) {
		out.Status = domain.DeliverySkipped
		out.Detail = "disabled by preferences"
		return out
	}

	body, err := json.Marshal(c.BuildPayload(d))
	if err != nil {
		out.Status = domain.DeliveryFailed
		out.Detail = fmt.Sprintf("marshal payload: %v", err)
		return out
	}
	receivers, err := c.hub.Publish(ctx, Group(n.UserID), body)
	if err != nil {
		out.Status = domain.DeliveryFailed
		out.Detail = err.Error()
		return out
	}
	if receivers == 0 {
		out.Status = domain.DeliverySkipped
		out.Detail = "no connected clients"
		return out
	}
	out.Status = domain.DeliveryDelivered
	out.Detail = fmt.Sprintf("%d receivers", receivers)
	return out
}

func (c *Channel) BuildPayload(d *domain.Delivery) Payload {
	n := d.Notification
	title, body := c.translator.TranslateNotification(d.Language, n.TitleKey, n.BodyKey, n.TranslationParams)
	return Payload{
		Type:              "notification",
		ID:                n.NotificationID,
		Category:          n.Category,
		TitleKey:          n.TitleKey,
		BodyKey:           n.BodyKey,
		TranslationParams: n.TranslationParams,
		Title:             title,
		Body:              body,
		FallbackContent:   n.FallbackContent,
		CreatedAt:         n.CreatedAt,
		IsRead:            n.IsRead,
		IsSeen:            n.IsSeen,
		Priority:          n.Priority,
		Metadata:          n.Metadata,
		Related:           n.Related,
		Sender:            d.SenderSummary(),
	}
}
