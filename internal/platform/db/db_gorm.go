// Package db opens the GORM connection used by the credential and session stores.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
	// Path is the sqlite file, or ":memory:".
	Path string

	ConnectTimeout time.Duration
	RetryInterval  time.Duration
}

// Opener opens a connection for a DSN. It is swapped out in tests.
type Opener func(dsn string) (*gorm.DB, error)

// BuildDSN returns a libpq key/value DSN for postgres and the file path for sqlite.
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslMode)
}

// NewOpener returns an Opener for the configured driver.
// Errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func NewOpener(driver string, gormLogger logger.Interface) (Opener, error) {
	var dialect func(string) gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialect = postgres.Open
	case DriverSQLite:
		dialect = sqlite.Open
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", driver).Errorf("unsupported database driver")
	}

	return func(dsn string) (*gorm.DB, error) {
		return gorm.Open(dialect(dsn), &gorm.Config{
			Logger:         gormLogger,
			TranslateError: true,
		})
	}, nil
}

// ConnectWithRetry keeps calling opener until it succeeds, the backoff gives
// up, or ctx is done. Containers start the app before the database accepts
// connections, so the first attempts are expected to fail.
func ConnectWithRetry(ctx context.Context, dsn string, backoff retry.Backoff, opener Opener) (*gorm.DB, error) {
	var db *gorm.DB
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := opener(dsn)
		if err != nil {
			slog.WarnContext(ctx, "DB connect failed, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrapf(err, "connect to database")
	}
	return db, nil
}

// Open connects with a constant backoff bounded by cfg.ConnectTimeout.
func Open(ctx context.Context, cfg Config, gormLogger logger.Interface) (*gorm.DB, error) {
	opener, err := NewOpener(cfg.Driver, gormLogger)
	if err != nil {
		return nil, err
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	backoff := retry.NewConstant(interval)
	if cfg.ConnectTimeout > 0 {
		backoff = retry.WithMaxDuration(cfg.ConnectTimeout, backoff)
	}

	db, err := ConnectWithRetry(ctx, BuildDSN(cfg), backoff, opener)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the tables for the given models.
func Migrate(ctx context.Context, db *gorm.DB, models ...any) error {
	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrapf(err, "auto migrate")
	}
	return nil
}
