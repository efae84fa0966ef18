package domain

import "time"

// Priority of a notification; forwarded to the push gateway.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Notification struct {
	NotificationID    string            `json:"id" dynamodbav:"notification_id"`
	UserID            string            `json:"user_id" dynamodbav:"user_id"`
	SenderID          *string           `json:"sender_id" dynamodbav:"sender_id"`
	Category          Category          `json:"category" dynamodbav:"category"`
	TitleKey          string            `json:"title_key" dynamodbav:"title_key"`
	BodyKey           string            `json:"body_key" dynamodbav:"body_key"`
	TranslationParams map[string]string `json:"translation_params" dynamodbav:"translation_params"`
	FallbackContent   string            `json:"fallback_content" dynamodbav:"fallback_content"`
	Related           *ObjectRef        `json:"related_object,omitempty" dynamodbav:"related_object,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	IsRead            bool              `json:"is_read" dynamodbav:"is_read"`
	IsSeen            bool              `json:"is_seen" dynamodbav:"is_seen"`
	Priority          Priority          `json:"priority" dynamodbav:"priority"`
	CreatedAt         time.Time         `json:"created" dynamodbav:"created_at"`
}

// NotificationFilter narrows a per-user listing.
type NotificationFilter struct {
	IsRead *bool
	Limit  int32
	Cursor string
}

// NotificationCounts holds the badge counters for one user.
type NotificationCounts struct {
	Unread int `json:"unread"`
	Unseen int `json:"unseen"`
}

// LegacyNotification is a row written before translation keys existed.
// Message holds the pre-rendered text those rows carried.
type LegacyNotification struct {
	Notification
	Message string `json:"message" dynamodbav:"message"`
}
