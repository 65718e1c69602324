package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestBuildDSN_Postgres verifies the key/value DSN for postgres.
func TestBuildDSN_Postgres(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Driver:   DriverPostgres,
		User:     "testuser",
		Password: "testpass",
		Name:     "testdb",
		Host:     "localhost",
		Port:     "5432",
		SSLMode:  "require",
	}

	dsn := BuildDSN(cfg)

	expected := "host=localhost user=testuser password=testpass dbname=testdb port=5432 sslmode=require TimeZone=UTC"
	if dsn != expected {
		t.Errorf("expected DSN %q, got %q", expected, dsn)
	}
}

// TestBuildDSN_PostgresDefaultSSLMode verifies sslmode falls back to disable.
func TestBuildDSN_PostgresDefaultSSLMode(t *testing.T) {
	t.Parallel()

	dsn := BuildDSN(Config{Driver: DriverPostgres, User: "u", Password: "p", Name: "n", Host: "h", Port: "1"})

	expected := "host=h user=u password=p dbname=n port=1 sslmode=disable TimeZone=UTC"
	if dsn != expected {
		t.Errorf("expected DSN %q, got %q", expected, dsn)
	}
}

// TestBuildDSN_SQLite verifies that sqlite uses the file path as its DSN.
func TestBuildDSN_SQLite(t *testing.T) {
	t.Parallel()

	dsn := BuildDSN(Config{Driver: DriverSQLite, Path: "sample_app.db", Host: "ignored"})

	if dsn != "sample_app.db" {
		t.Errorf("expected DSN %q, got %q", "sample_app.db", dsn)
	}
}

// TestNewOpener_UnknownDriver verifies that unsupported drivers are rejected.
func TestNewOpener_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := NewOpener("mysql", logger.Discard); err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
}

// TestConnectWithRetry_SuccessOnFirstTry verifies the DB is returned without retrying.
func TestConnectWithRetry_SuccessOnFirstTry(t *testing.T) {
	t.Parallel()

	mockDB := &gorm.DB{}
	attemptCount := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attemptCount++
		return mockDB, nil
	}

	db, err := ConnectWithRetry(context.Background(), "test-dsn", retry.NewConstant(time.Millisecond), opener)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != mockDB {
		t.Error("expected mock DB to be returned")
	}
	if attemptCount != 1 {
		t.Errorf("expected 1 attempt, got %d", attemptCount)
	}
}

// TestConnectWithRetry_RetriesOnFailure verifies that failed attempts are retried until success.
func TestConnectWithRetry_RetriesOnFailure(t *testing.T) {
	t.Parallel()

	mockDB := &gorm.DB{}
	attemptCount := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attemptCount++
		if attemptCount < 3 {
			return nil, errors.New("connection refused")
		}
		return mockDB, nil
	}

	db, err := ConnectWithRetry(context.Background(), "test-dsn",
		retry.WithMaxRetries(5, retry.NewConstant(time.Millisecond)), opener)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != mockDB {
		t.Error("expected mock DB to be returned")
	}
	if attemptCount != 3 {
		t.Errorf("expected 3 attempts, got %d", attemptCount)
	}
}

// TestConnectWithRetry_GivesUp verifies that an error is returned once the backoff stops.
func TestConnectWithRetry_GivesUp(t *testing.T) {
	t.Parallel()

	attemptCount := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attemptCount++
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry(context.Background(), "test-dsn",
		retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond)), opener)

	if err == nil {
		t.Fatal("expected error after retries, got nil")
	}
	if attemptCount != 3 {
		t.Errorf("expected 3 attempts, got %d", attemptCount)
	}
}

// TestConnectWithRetry_ContextCanceled verifies that a canceled context stops retrying.
func TestConnectWithRetry_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	opener := func(dsn string) (*gorm.DB, error) {
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry(ctx, "test-dsn", retry.NewConstant(time.Hour), opener)

	if err == nil {
		t.Fatal("expected error after cancellation, got nil")
	}
}

type migrateProbe struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

// TestOpen_SQLiteAndMigrate verifies an in-memory sqlite connection and AutoMigrate.
func TestOpen_SQLiteAndMigrate(t *testing.T) {
	t.Parallel()

	db, err := Open(context.Background(), Config{Driver: DriverSQLite, Path: ":memory:"}, logger.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := Migrate(context.Background(), db, &migrateProbe{}); err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}
	if !db.Migrator().HasTable(&migrateProbe{}) {
		t.Error("expected table to be created")
	}
}
