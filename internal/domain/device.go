package domain

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// tokenPrefixes are the two vendor prefixes the push gateway issues.
var tokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// DeviceToken is one registered push endpoint. Token is the primary key of
// the registry: a token belongs to exactly one user at a time.
type DeviceToken struct {
	TokenID    string            `json:"id" dynamodbav:"token_id"`
	UserID     string            `json:"user_id" dynamodbav:"user_id"`
	Token      string            `json:"token" dynamodbav:"token"`
	Platform   Platform          `json:"platform" dynamodbav:"platform"`
	Locale     string            `json:"locale" dynamodbav:"locale"`
	IsActive   bool              `json:"is_active" dynamodbav:"is_active"`
	DeviceInfo map[string]string `json:"device_info,omitempty" dynamodbav:"device_info,omitempty"`
	CreatedAt  time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time         `json:"updated" dynamodbav:"updated_at"`
}

type RegisterTokenRequest struct {
	Token      string            `json:"token" validate:"required,pushtoken"`
	Platform   Platform          `json:"platform" validate:"required,oneof=ios android web"`
	Locale     string            `json:"locale" validate:"omitempty,max=35"`
	DeviceInfo map[string]string `json:"device_info"`
}

type UnregisterTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ValidPushToken reports whether token has a recognised vendor prefix and
// ends with ']'.
func ValidPushToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	for _, p := range tokenPrefixes {
		if strings.HasPrefix(token, p) && len(token) > len(p)+1 {
			return true
		}
	}
	return false
}
