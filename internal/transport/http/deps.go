package http

import (
	"context"
	"io"

	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/application/preference"
	"github.com/gymbuddy-notify/internal/application/push"
	"github.com/gymbuddy-notify/internal/infrastructure/broadcast"
	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
)

// Subscriber is the part of the realtime hub the stream endpoint needs.
type Subscriber interface {
	Subscribe(ctx context.Context, group string) (*broadcast.Subscription, error)
}

// TokenVerifier validates bearer tokens issued by the accounts service.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Deps holds the services the router exposes.
type Deps struct {
	Notifications notification.Service
	Push          push.Service
	Preferences   preference.Service
	Hub           Subscriber
	// Verifier may be nil in local development. Routes that need a caller
	// identity then answer 401.
	Verifier TokenVerifier
	// AccessLog receives one line per request; nil means stdout.
	AccessLog io.Writer
}
