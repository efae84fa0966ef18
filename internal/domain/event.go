package domain

// EventContent is the part of a trigger event shared by single and bulk
// requests.
type EventContent struct {
	Category        Category          `json:"category" validate:"required,max=64"`
	SenderID        string            `json:"sender_id"`
	Related         *ObjectRef        `json:"related_object" validate:"omitempty"`
	Params          map[string]string `json:"params"`
	Priority        Priority          `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Metadata        map[string]any    `json:"metadata"`
	TitleKey        string            `json:"title_key" validate:"omitempty,max=128"`
	BodyKey         string            `json:"body_key" validate:"omitempty,max=128"`
	FallbackContent string            `json:"fallback_content" validate:"omitempty,max=2000"`
}

// TriggerEventRequest asks for one notification to one recipient.
type TriggerEventRequest struct {
	UserID string `json:"user_id" validate:"required"`
	EventContent
}

// BulkTriggerRequest asks for the same notification to many recipients.
type BulkTriggerRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=1000,dive,required"`
	EventContent
}
