// Package config loads the application configuration from defaults, an
// optional YAML file and SAMPLE_APP_* environment variables, in that order.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are separated
// by a double underscore: SAMPLE_APP_AUTH__COOKIE_SECRET sets auth.cookie_secret.
const EnvPrefix = "SAMPLE_APP_"

type Config struct {
	Log       Log       `koanf:"log"`
	HTTP      HTTP      `koanf:"http"`
	DB        DB        `koanf:"db"`
	Redis     Redis     `koanf:"redis"`
	Session   Session   `koanf:"session"`
	Auth      Auth      `koanf:"auth"`
	Mail      Mail      `koanf:"mail"`
	RateLimit RateLimit `koanf:"rate_limit"`
}

type Log struct {
	Level string `koanf:"level"`
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

type HTTP struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For
	// header is believed. Empty means the peer address is the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DB struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
	// Path is the sqlite database file.
	Path           string        `koanf:"path"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RetryInterval  time.Duration `koanf:"retry_interval"`
}

// Redis is optional: an empty Addr disables it.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type Session struct {
	// Store is "auto", "redis" or "db". Auto picks Redis when it is configured.
	Store      string        `koanf:"store"`
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	Secure     bool          `koanf:"secure"`
	KeyPrefix  string        `koanf:"key_prefix"`
}

type Auth struct {
	BcryptCost    int           `koanf:"bcrypt_cost"`
	ResetTokenTTL time.Duration `koanf:"reset_token_ttl"`
	// SessionTokenMode is "shared" or "independent".
	SessionTokenMode string `koanf:"session_token_mode"`
	// CookieSecret signs the permanent user_id cookie.
	CookieSecret string `koanf:"cookie_secret"`
}

type Mail struct {
	// Driver is "auto", "redis" or "log".
	Driver    string `koanf:"driver"`
	OutboxKey string `koanf:"outbox_key"`
	BaseURL   string `koanf:"base_url"`
}

// RateLimit throttles login and password reset requests per client address.
// It needs Redis; Limit 0 turns it off.
type RateLimit struct {
	Limit    int           `koanf:"limit"`
	Interval time.Duration `koanf:"interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log: Log{Level: "info", Format: "json"},
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DB{
			Driver:         "sqlite",
			Host:           "localhost",
			Port:           "5432",
			SSLMode:        "disable",
			Path:           "sample_app.db",
			ConnectTimeout: 60 * time.Second,
			RetryInterval:  3 * time.Second,
		},
		Session: Session{
			Store:      "auto",
			CookieName: "_sample_app_session",
			TTL:        24 * time.Hour,
			KeyPrefix:  "session",
		},
		Auth: Auth{
			BcryptCost:       10,
			ResetTokenTTL:    2 * time.Hour,
			SessionTokenMode: "shared",
		},
		Mail: Mail{
			Driver:    "auto",
			OutboxKey: "mail:outbox",
			BaseURL:   "http://localhost:8080",
		},
		RateLimit: RateLimit{
			Limit:    10,
			Interval: time.Minute,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "read config file")
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "load environment")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SAMPLE_APP_SESSION__COOKIE_NAME to session.cookie_name.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

// Validate checks values that have no safe default.
func (c *Config) Validate() error {
	invalid := oops.Code("CONFIG_INVALID")

	if c.Auth.CookieSecret == "" {
		return invalid.Errorf("auth.cookie_secret is required")
	}
	if !slices.Contains([]string{"shared", "independent"}, c.Auth.SessionTokenMode) {
		return invalid.With("value", c.Auth.SessionTokenMode).Errorf("auth.session_token_mode must be shared or independent")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return invalid.Errorf("auth.reset_token_ttl must be positive")
	}
	if !slices.Contains([]string{"postgres", "sqlite"}, c.DB.Driver) {
		return invalid.With("value", c.DB.Driver).Errorf("db.driver must be postgres or sqlite")
	}
	if !slices.Contains([]string{"auto", "redis", "db"}, c.Session.Store) {
		return invalid.With("value", c.Session.Store).Errorf("session.store must be auto, redis or db")
	}
	if c.Session.Store == "redis" && c.Redis.Addr == "" {
		return invalid.Errorf("session.store is redis but redis.addr is empty")
	}
	if !slices.Contains([]string{"auto", "redis", "log"}, c.Mail.Driver) {
		return invalid.With("value", c.Mail.Driver).Errorf("mail.driver must be auto, redis or log")
	}
	if c.Mail.Driver == "redis" && c.Redis.Addr == "" {
		return invalid.Errorf("mail.driver is redis but redis.addr is empty")
	}
	if c.RateLimit.Limit < 0 {
		return invalid.Errorf("rate_limit.limit must not be negative")
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Interval <= 0 {
		return invalid.Errorf("rate_limit.interval must be positive")
	}
	return nil
}
