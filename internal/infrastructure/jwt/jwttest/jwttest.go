// Package jwttest mints RS256 tokens for tests of code that verifies them.
package jwttest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
)

// Issuer holds a fresh key pair and the verifier for its public half.
type Issuer struct {
	Verifier *jwtinfra.Provider
	key      *rsa.PrivateKey
}

func New(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &Issuer{Verifier: jwtinfra.NewVerifier(&key.PublicKey), key: key}
}

// Sign returns a token valid for one hour.
func (i *Issuer) Sign(t testing.TB, userID, role string) string {
	t.Helper()
	return i.SignWithExpiry(t, userID, role, time.Hour)
}

// SignWithExpiry returns a token expiring ttl from now; a negative ttl
// yields an already expired token.
func (i *Issuer) SignWithExpiry(t testing.TB, userID, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwtinfra.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
