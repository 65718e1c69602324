package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sample_app/internal/feature/auth/usecase"
)

// SessionRedis implements Store using Redis. Each session is one JSON value
// whose TTL matches the session expiry.
type SessionRedis struct {
	client redis.Cmdable
	prefix string
}

var _ Store = (*SessionRedis)(nil)

// NewSessionRedis creates a new SessionRedis instance.
func NewSessionRedis(client redis.Cmdable, prefix string) *SessionRedis {
	return &SessionRedis{
		client: client,
		prefix: prefix,
	}
}

// sessionKey returns the Redis key for a session.
func (r *SessionRedis) sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

// Save stores the session with a TTL ending at its expiry.
func (r *SessionRedis) Save(ctx context.Context, id string, data *Data) error {
	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, r.sessionKey(id), payload, ttl).Err()
}

// Load retrieves a session by its ID.
func (r *SessionRedis) Load(ctx context.Context, id string) (*Data, error) {
	payload, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if data.Values == nil {
		data.Values = make(map[string]string)
	}
	return &data, nil
}

// Delete removes a session.
func (r *SessionRedis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.sessionKey(id)).Err()
}
