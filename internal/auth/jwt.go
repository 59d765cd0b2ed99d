// Package auth validates bearer tokens and tracks sessions. Identity lives
// with an external provider; this service only checks signatures and keeps
// a session record per authenticated user.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hanseplat/userhub/internal/result"
)

const tokenLifetime = 24 * time.Hour

// Authenticator signs and validates HS256 tokens with a shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator around the configured secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Generate issues a token for the given user, valid for 24 hours.
func (a *Authenticator) Generate(userID string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate checks the token and returns the subject user id.
func (a *Authenticator) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", result.Errf(result.KindInvalid, fmt.Sprintf("invalid token: %v", err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", result.Errf(result.KindInvalid, "invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", result.Errf(result.KindInvalid, "token missing subject")
	}
	return sub, nil
}
