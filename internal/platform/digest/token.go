package digest

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the amount of randomness in a token (128 bits).
const TokenBytes = 16

// NewToken returns a random URL-safe token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenGenerator adapts NewToken to the usecase.TokenGenerator interface.
type TokenGenerator struct{}

// NewToken returns a random URL-safe token.
func (TokenGenerator) NewToken() (string, error) {
	return NewToken()
}
