// Package digest provides one-way hashing of secrets and random token generation.
package digest

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets (passwords and tokens) with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given bcrypt work factor.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// NewTestHasher creates a Hasher with the minimum cost. Only tests should use it.
func NewTestHasher() *Hasher {
	return &Hasher{cost: bcrypt.MinCost}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Digest returns the bcrypt digest of secret.
func (h *Hasher) Digest(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether candidate matches digest.
// An empty or malformed digest never matches.
func (h *Hasher) Verify(digest, candidate string) bool {
	if digest == "" {
		return false
	}
	// bcrypt compares in constant time with respect to the candidate.
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(candidate)) == nil
}
