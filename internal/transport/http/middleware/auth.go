package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

// accessTokenParam carries the token for clients that cannot set headers.
const accessTokenParam = "access_token"

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Auth validates the Bearer JWT and injects its claims into the request
// context. A nil provider rejects every request.
func Auth(provider tokenVerifier) func(http.Handler) http.Handler {
	return authenticate(provider, headerToken)
}

// StreamAuth is Auth for EventSource endpoints: browsers cannot set headers
// there, so the token may also arrive as the access_token query parameter.
func StreamAuth(provider tokenVerifier) func(http.Handler) http.Handler {
	return authenticate(provider, func(r *http.Request) string {
		if t := headerToken(r); t != "" {
			return t
		}
		return r.URL.Query().Get(accessTokenParam)
	})
}

func authenticate(provider tokenVerifier, extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if provider == nil {
				writeJSONError(w, http.StatusUnauthorized, "authentication unavailable")
				return
			}
			tokenStr := extract(r)
			if tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := provider.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func headerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}
