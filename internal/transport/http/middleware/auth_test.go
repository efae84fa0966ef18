package middleware

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
	"github.com/gymbuddy-notify/internal/infrastructure/jwt/jwttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAuth_MissingHeader(t *testing.T) {
	iss := jwttest.New(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(iss.Verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_BadToken(t *testing.T) {
	iss := jwttest.New(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	Auth(iss.Verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ForeignKeyToken(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := &jwtinfra.Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privKey)
	require.NoError(t, err)

	iss := jwttest.New(t) // different key pair

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(iss.Verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidToken_InjectsClaims(t *testing.T) {
	iss := jwttest.New(t)

	var gotClaims *jwtinfra.Claims
	captureHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+iss.Sign(t, "u1", "user"))
	rr := httptest.NewRecorder()
	Auth(iss.Verifier)(captureHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "u1", gotClaims.UserID)
	assert.Equal(t, "user", gotClaims.Role)
}

func TestAuth_NilVerifierRejects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	Auth(nil)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	StreamAuth(nil)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?access_token=x", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_IgnoresQueryToken(t *testing.T) {
	iss := jwttest.New(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications/counts?access_token="+iss.Sign(t, "u1", "user"), nil)
	rr := httptest.NewRecorder()
	Auth(iss.Verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStreamAuth_AcceptsQueryToken(t *testing.T) {
	iss := jwttest.New(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications/stream?access_token="+iss.Sign(t, "u1", "user"), nil)
	rr := httptest.NewRecorder()
	StreamAuth(iss.Verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAccessLog_RedactsQueryToken(t *testing.T) {
	iss := jwttest.New(t)
	token := iss.Sign(t, "u1", "user")

	var buf bytes.Buffer
	h := AccessLog(log.New(&buf, "", 0))(StreamAuth(iss.Verifier)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications/stream?access_token="+token+"&x=1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler still sees the real token")
	assert.NotContains(t, buf.String(), token)
	assert.Contains(t, buf.String(), "access_token=REDACTED")
	assert.Contains(t, buf.String(), "/v1/notifications/stream")
}

func TestAccessLog_LeavesPlainURIs(t *testing.T) {
	var buf bytes.Buffer
	AccessLog(log.New(&buf, "", 0))(http.HandlerFunc(okHandler)).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=5", nil))

	assert.Contains(t, buf.String(), "/v1/notifications?limit=5")
}
