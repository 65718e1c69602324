package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"sample_app/internal/platform/config"
	"sample_app/internal/platform/session"
)

// NewSessionStore creates a session Store implementation.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to the database, unless Redis was required.
func NewSessionStore(cfg config.Session, rdb *redis.Client, gdb *gorm.DB) (session.Store, error) {
	switch {
	case cfg.Store == "db":
		return session.NewSessionGorm(gdb), nil
	case rdb != nil:
		return session.NewSessionRedis(rdb, cfg.KeyPrefix), nil
	case cfg.Store == "redis":
		return nil, errRedisRequired("session.store")
	default:
		return session.NewSessionGorm(gdb), nil
	}
}
