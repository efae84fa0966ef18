package dynamo

// DynamoDB attribute names used in update expressions across all repos.
const (
	fieldIsRead    = "is_read"
	fieldIsSeen    = "is_seen"
	fieldIsActive  = "is_active"
	fieldUserID    = "user_id"
	fieldUpdatedAt = "updated_at"
	fieldTitleKey  = "title_key"
	fieldBodyKey   = "body_key"

	fieldFallbackContent = "fallback_content"
)
