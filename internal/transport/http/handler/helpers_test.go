package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
	"github.com/gymbuddy-notify/internal/infrastructure/jwt/jwttest"
	"github.com/gymbuddy-notify/internal/transport/http/middleware"
)

// newTestJWTProvider returns an issuer backed by a fresh RSA key pair.
func newTestJWTProvider(t *testing.T) *jwttest.Issuer {
	return jwttest.New(t)
}

// bearerReq builds a request with a signed Bearer token for the given userID and role.
func bearerReq(t *testing.T, p *jwttest.Issuer, method, target, userID, role string, body []byte) *http.Request {
	t.Helper()
	token := p.Sign(t, userID, role)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withClaims skips token signing for tests that only need an identity.
func withClaims(r *http.Request, userID, role string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID, Role: role}))
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwttest.Issuer, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p.Verifier)(h).ServeHTTP(w, r)
}
