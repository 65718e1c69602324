package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"sample_app/internal/feature/auth/usecase"
	"sample_app/internal/platform/config"
	"sample_app/internal/platform/mailer"
)

// NewMailer queues mail on Redis when it is available and only logs otherwise.
func NewMailer(cfg config.Mail, rdb *redis.Client, logger *slog.Logger) (usecase.Mailer, error) {
	switch {
	case cfg.Driver == "log":
		return mailer.NewLogMailer(logger), nil
	case rdb != nil:
		return mailer.NewRedisOutbox(rdb, cfg.OutboxKey, mailer.NewLinks(cfg.BaseURL)), nil
	case cfg.Driver == "redis":
		return nil, errRedisRequired("mail.driver")
	default:
		logger.Warn("Redis unavailable. Account emails will only be logged.")
		return mailer.NewLogMailer(logger), nil
	}
}

func errRedisRequired(setting string) error {
	return oops.Code("CONFIG_INVALID").With("setting", setting).Errorf("%s requires redis but it is unavailable", setting)
}
