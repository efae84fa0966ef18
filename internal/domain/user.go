package domain

// User is the read-only view of an account the notification core needs.
// The users table is owned by the accounts service.
type User struct {
	UserID      string `json:"id" dynamodbav:"user_id"`
	Username    string `json:"username" dynamodbav:"username"`
	DisplayName string `json:"display_name" dynamodbav:"display_name"`
	Email       string `json:"email" dynamodbav:"email"`
	Language    string `json:"language" dynamodbav:"language"`
}

// Name returns the display name, or the username when none is set.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// SenderSummary is the compact sender block embedded in realtime payloads.
type SenderSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Role names carried in the JWT role claim.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleService = "service"
)
