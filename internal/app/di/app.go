package di

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"sample_app/internal/app/router"
	authadapters "sample_app/internal/feature/auth/adapters"
	authhandler "sample_app/internal/feature/auth/transport/handler"
	authusecase "sample_app/internal/feature/auth/usecase"
	"sample_app/internal/platform/config"
	"sample_app/internal/platform/digest"
	platformhandler "sample_app/internal/platform/http/handler"
	jwtcookie "sample_app/internal/platform/jwt"
	"sample_app/internal/platform/metrics"
	"sample_app/internal/platform/session"
	"sample_app/internal/shared/ratelimiter"
)

const healthCheckTimeout = 2 * time.Second

// App holds the wired application and the connections it owns.
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
}

// NewApp opens the connections and wires every component from cfg.
// Redis is optional unless a setting explicitly requires it.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	gdb, err := OpenDB(ctx, cfg.DB, logger, cfg.Log.Level == "debug")
	if err != nil {
		return nil, err
	}

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		if cfg.Session.Store == "redis" || cfg.Mail.Driver == "redis" {
			closeDB(gdb)
			return nil, err
		}
		logger.Warn("Redis unavailable. Falling back to database sessions.", "error", err)
		rdb = nil
	}

	app, err := Wire(cfg, gdb, rdb, logger)
	if err != nil {
		closeDB(gdb)
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return app, nil
}

// Wire builds the application on already opened connections. rdb may be nil.
func Wire(cfg *config.Config, gdb *gorm.DB, rdb *redis.Client, logger *slog.Logger) (*App, error) {
	m := metrics.New()

	// Repository
	userRepo := authadapters.NewUserGorm(gdb)
	sessionStore, err := NewSessionStore(cfg.Session, rdb, gdb)
	if err != nil {
		return nil, err
	}
	mail, err := NewMailer(cfg.Mail, rdb, logger)
	if err != nil {
		return nil, err
	}
	signer, err := jwtcookie.NewSigner(cfg.Auth.CookieSecret, 0)
	if err != nil {
		return nil, err
	}

	// Usecase
	hasher := digest.NewHasher(cfg.Auth.BcryptCost)
	tokens := digest.TokenGenerator{}
	sessionUC := authusecase.NewSessionManager(userRepo, hasher, tokens,
		authusecase.SessionTokenMode(cfg.Auth.SessionTokenMode), m)
	accountUC := authusecase.NewAccountUsecase(userRepo, hasher, tokens, mail, cfg.Auth.ResetTokenTTL, m)

	// Handler
	checks := []platformhandler.Check{{Name: "database", Probe: func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}}
	if rdb != nil {
		checks = append(checks, platformhandler.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var limiter ratelimiter.Limiter
	if rdb != nil && cfg.RateLimit.Limit > 0 {
		limiter = ratelimiter.NewRateLimiter(rdb, "ratelimit", cfg.RateLimit.Limit, cfg.RateLimit.Interval)
	}

	r, err := router.NewRouter(router.Deps{
		Auth:    authhandler.NewAuthHandler(sessionUC),
		Account: authhandler.NewAccountHandler(accountUC, sessionUC),
		Health:  platformhandler.NewHealth(healthCheckTimeout, checks...),
		Sessions: session.NewManager(sessionStore, signer, session.Config{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		}),
		Metrics:        m,
		Limiter:        limiter,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "http.trusted_proxies")
	}

	return &App{Router: r, DB: gdb, Redis: rdb, Metrics: m}, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
