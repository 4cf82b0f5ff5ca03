// Package auth supplies the authenticated principal consumed by the
// repository layer's authorization checks, and the bearer tokens spoken
// by the sync endpoints.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"liftlog/internal/apperr"
)

// Principal identifies the authenticated user for a call.
type Principal struct {
	UserID string
}

// Provider yields the current principal, or an AuthError when nobody is
// signed in.
type Provider interface {
	Current() (Principal, error)
}

// Static is a Provider with a fixed principal. An empty UserID means
// signed out.
type Static struct {
	UserID string
}

// Current implements Provider.
func (s Static) Current() (Principal, error) {
	if s.UserID == "" {
		return Principal{}, &apperr.AuthError{Message: "not signed in"}
	}
	return Principal{UserID: s.UserID}, nil
}

// claims is the token payload: standard registered claims with the user
// id in the subject.
type claims struct {
	jwt.RegisteredClaims
}

// MintToken issues an HS256 bearer token for userID, valid for ttl.
func MintToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 bearer token and returns its principal.
func ParseToken(secret []byte, tokenString string) (Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, &apperr.AuthError{Message: "invalid token"}
	}
	if c.Subject == "" {
		return Principal{}, &apperr.AuthError{Message: "token has no subject"}
	}
	return Principal{UserID: c.Subject}, nil
}
