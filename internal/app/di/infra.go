// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"sample_app/internal/feature/auth/domain/entity"
	"sample_app/internal/platform/config"
	"sample_app/internal/platform/db"
	"sample_app/internal/platform/logging"
	platformredis "sample_app/internal/platform/redis"
	"sample_app/internal/platform/session"
)

// OpenDB connects to the configured database, retrying until cfg.ConnectTimeout.
func OpenDB(ctx context.Context, cfg config.DB, logger *slog.Logger, debug bool) (*gorm.DB, error) {
	return db.Open(ctx, db.Config{
		Driver:         cfg.Driver,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		Host:           cfg.Host,
		Port:           cfg.Port,
		SSLMode:        cfg.SSLMode,
		Path:           cfg.Path,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryInterval:  cfg.RetryInterval,
	}, logging.NewGormLogger(logger, debug))
}

// OpenRedis returns nil without error when Redis is not configured.
func OpenRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	return platformredis.NewRedisClient(ctx, platformredis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Models lists every table the application owns.
func Models() []any {
	return []any{&entity.User{}, &session.SessionModel{}}
}

// Migrate creates or updates the application's tables.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	return db.Migrate(ctx, gdb, Models()...)
}
