package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings the server. The client is closed when the ping fails.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connectivity before handing the client out.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		slog.ErrorContext(ctx, "Redis connection failed", "address", cfg.Addr, "error", err)
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Addr).Wrap(err)
	}

	slog.InfoContext(ctx, "Redis connection successful", "address", cfg.Addr)
	return rdb, nil
}
