package domain

import "time"

// Channel is one delivery path of a notification.
type Channel string

const (
	ChannelRealtime Channel = "realtime"
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
)

type DigestFrequency string

const (
	DigestNever  DigestFrequency = "never"
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

// NotificationPreference is the per-user settings singleton. A nil toggle map
// or a missing entry means enabled.
type NotificationPreference struct {
	UserID                    string          `json:"user_id" dynamodbav:"user_id"`
	PushNotificationsEnabled  bool            `json:"push_notifications_enabled" dynamodbav:"push_notifications_enabled"`
	EmailNotificationsEnabled bool            `json:"email_notifications_enabled" dynamodbav:"email_notifications_enabled"`
	Push                      map[Bucket]bool `json:"push" dynamodbav:"push"`
	Email                     map[Bucket]bool `json:"email" dynamodbav:"email"`
	// Quiet hours and digest frequency are stored for the external digest job;
	// the delivery path does not read them.
	QuietHoursStart      *string         `json:"quiet_hours_start" dynamodbav:"quiet_hours_start"`
	QuietHoursEnd        *string         `json:"quiet_hours_end" dynamodbav:"quiet_hours_end"`
	DigestFrequency      DigestFrequency `json:"digest_frequency" dynamodbav:"digest_frequency"`
	NotificationLanguage string          `json:"notification_language" dynamodbav:"notification_language"`
	CreatedAt            time.Time       `json:"created" dynamodbav:"created_at"`
	UpdatedAt            time.Time       `json:"updated" dynamodbav:"updated_at"`
}

// DefaultPreference returns the all-enabled record used when none is stored.
func DefaultPreference(userID string) *NotificationPreference {
	now := time.Now().UTC()
	return &NotificationPreference{
		UserID:                    userID,
		PushNotificationsEnabled:  true,
		EmailNotificationsEnabled: true,
		Push:                      map[Bucket]bool{},
		Email:                     map[Bucket]bool{},
		DigestFrequency:           DigestNever,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

// Enabled reports whether channel is on for bucket, checking the channel's
// global switch first. Realtime shares the push switch and toggles.
func (p *NotificationPreference) Enabled(channel Channel, bucket Bucket, hasBucket bool) bool {
	var global bool
	var toggles map[Bucket]bool
	switch channel {
	case ChannelPush, ChannelRealtime:
		global, toggles = p.PushNotificationsEnabled, p.Push
	case ChannelEmail:
		global, toggles = p.EmailNotificationsEnabled, p.Email
	default:
		return true
	}
	if !global {
		return false
	}
	if !hasBucket {
		return true
	}
	on, ok := toggles[bucket]
	if !ok {
		return true
	}
	return on
}

// UpdatePreferenceRequest is a partial update; nil fields are left untouched
// and toggle maps are merged key by key.
type UpdatePreferenceRequest struct {
	PushNotificationsEnabled  *bool            `json:"push_notifications_enabled"`
	EmailNotificationsEnabled *bool            `json:"email_notifications_enabled"`
	Push                      map[Bucket]bool  `json:"push"`
	Email                     map[Bucket]bool  `json:"email"`
	QuietHoursStart           *string          `json:"quiet_hours_start" validate:"omitempty,datetime=15:04"`
	QuietHoursEnd             *string          `json:"quiet_hours_end" validate:"omitempty,datetime=15:04"`
	DigestFrequency           *DigestFrequency `json:"digest_frequency" validate:"omitempty,oneof=never daily weekly"`
	NotificationLanguage      *string          `json:"notification_language" validate:"omitempty,oneof=en fr es de pt it"`
}

// Allows reports whether category may be delivered over channel.
func (p *NotificationPreference) Allows(channel Channel, category Category) bool {
	bucket, ok := category.Bucket()
	return p.Enabled(channel, bucket, ok)
}
