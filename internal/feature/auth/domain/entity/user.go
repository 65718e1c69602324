// Package entity defines the domain entities for the auth feature.
package entity

import (
	"strings"
	"time"
)

// User represents a registered user in the system.
// Secrets are never stored in plaintext: every credential has a digest column.
type User struct {
	// ID is the unique identifier for the user.
	ID uint `gorm:"primaryKey"`

	// Name is the display name shown next to the user's posts.
	Name string `gorm:"size:50;not null"`

	// Email is the user's email address used for authentication.
	// It is stored lower-cased and must be unique across all users.
	Email string `gorm:"uniqueIndex;size:255;not null"`

	// PasswordDigest is the bcrypt digest of the current password.
	PasswordDigest string `gorm:"size:255;not null"`

	// RememberDigest is the digest of the current remember-me token.
	// It is nil unless "remember me" is active.
	RememberDigest *string `gorm:"size:255"`

	// SessionToken is the anti-replay token used when session tokens are
	// decoupled from remember-me. Unused in the shared mode.
	SessionToken *string `gorm:"size:255"`

	ActivationDigest *string `gorm:"size:255"`
	Activated        bool    `gorm:"not null;default:false"`
	ActivatedAt      *time.Time

	ResetDigest *string `gorm:"size:255"`
	ResetSentAt *time.Time

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time
}

// NormalizeEmail returns the canonical form in which emails are stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Digest returns the stored digest for the given token kind, or "" when none is set.
func (u *User) Digest(kind TokenKind) string {
	switch kind {
	case TokenPassword:
		return u.PasswordDigest
	case TokenRemember:
		return deref(u.RememberDigest)
	case TokenActivation:
		return deref(u.ActivationDigest)
	case TokenReset:
		return deref(u.ResetDigest)
	default:
		return ""
	}
}

// Set applies column values that were just written to the store, so the
// in-memory user matches the persisted row.
func (u *User) Set(cols Columns) {
	for col, v := range cols {
		switch col {
		case ColumnPasswordDigest:
			u.PasswordDigest, _ = v.(string)
		case ColumnRememberDigest:
			u.RememberDigest = stringPtr(v)
		case ColumnSessionToken:
			u.SessionToken = stringPtr(v)
		case ColumnActivationDigest:
			u.ActivationDigest = stringPtr(v)
		case ColumnActivated:
			u.Activated, _ = v.(bool)
		case ColumnActivatedAt:
			u.ActivatedAt = timePtr(v)
		case ColumnResetDigest:
			u.ResetDigest = stringPtr(v)
		case ColumnResetSentAt:
			u.ResetSentAt = timePtr(v)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func timePtr(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}
