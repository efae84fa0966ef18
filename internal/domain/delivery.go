package domain

import "time"

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliverySkipped   DeliveryStatus = "skipped"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryOutcome is what one channel reports back to the orchestrator.
type DeliveryOutcome struct {
	Channel Channel        `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	Detail  string         `json:"detail,omitempty"`
}

// DeliveryLog is the best-effort record of one channel attempt.
// PK: notification_id, SK: channel.
type DeliveryLog struct {
	NotificationID string         `json:"notification_id" dynamodbav:"notification_id"`
	Channel        Channel        `json:"channel" dynamodbav:"channel"`
	UserID         string         `json:"user_id" dynamodbav:"user_id"`
	Status         DeliveryStatus `json:"status" dynamodbav:"status"`
	Detail         string         `json:"detail" dynamodbav:"detail"`
	CreatedAt      time.Time      `json:"created" dynamodbav:"created_at"`
	ExpiresAt      int64          `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Delivery is one notification on its way to one recipient, with the
// recipient context every channel needs already resolved.
type Delivery struct {
	Notification *Notification
	// Recipient is nil when the user record could not be loaded.
	Recipient  *User
	Sender     *User
	Preference *NotificationPreference
	Language   string
}

// SenderSummary returns the compact sender block, or nil without a sender.
func (d *Delivery) SenderSummary() *SenderSummary {
	if d.Sender == nil {
		return nil
	}
	return &SenderSummary{ID: d.Sender.UserID, Username: d.Sender.Username, DisplayName: d.Sender.Name()}
}
