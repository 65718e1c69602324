// Package jwtcookie signs cookie values as HS256 JWTs so that tampered
// cookies can be detected.
package jwtcookie

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs and verifies cookie values.
type Signer interface {
	// Sign returns a token carrying value, bound to the cookie name.
	Sign(name, value string) (string, error)
	// Verify returns the value carried by token. It reports false for a
	// tampered or expired token, or one that was signed for another cookie.
	Verify(name, token string) (string, bool)
}

// HS256Signer implements Signer with a shared secret.
type HS256Signer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

var _ Signer = (*HS256Signer)(nil)

// NewSigner creates an HS256 signer. A zero expiration issues tokens that never expire.
func NewSigner(secret string, expiration time.Duration) (*HS256Signer, error) {
	if secret == "" {
		return nil, errors.New("cookie signing secret is empty")
	}
	return &HS256Signer{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}, nil
}

// Sign creates a signed token with the value as subject and the cookie name as audience.
func (s *HS256Signer) Sign(name, value string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:  value,
		Audience: jwt.ClaimStrings{name},
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.expiration != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie: %w", err)
	}
	return signed, nil
}

// Verify parses and checks token.
func (s *HS256Signer) Verify(name, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(name),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", false
	}
	return claims.Subject, true
}
