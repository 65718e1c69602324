// Package session keeps the short-lived browser session on the server side.
// The browser only holds a random session id in a non-persistent cookie.
package session

import (
	"context"
	"time"
)

// Data is the server-side state of one browser session.
type Data struct {
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (d *Data) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Store persists session data by session id.
type Store interface {
	// Load returns usecase.ErrSessionNotFound for an unknown or expired id.
	Load(ctx context.Context, id string) (*Data, error)
	// Save creates or replaces the session.
	Save(ctx context.Context, id string, data *Data) error
	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
