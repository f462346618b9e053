package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/brightmesh/querycore/internal/secrets"
)

// Config is populated from environment variables via caarlos0/env, with
// indirection through <NAME>_FILE pointer files and Docker secrets under
// /run/secrets/ resolved first by internal/secrets before env.Parse runs.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"API_PORT" envDefault:"8080" validate:"required"`
	Host string `env:"API_HOST" envDefault:"0.0.0.0"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret   string `env:"JWT_SECRET,required" validate:"required"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24" validate:"min=1,max=720"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required"`

	MaxConcurrentQueriesPerOrg int `env:"MAX_CONCURRENT_QUERIES_PER_ORG" envDefault:"10" validate:"min=1"`
	MaxConcurrentQueriesGlobal int `env:"MAX_CONCURRENT_QUERIES_GLOBAL" envDefault:"100" validate:"min=1"`

	RunnerID              string `env:"RUNNER_ID"`
	RunnerConcurrency     int    `env:"RUNNER_CONCURRENCY" envDefault:"10" validate:"min=1,max=256"`
	RunnerPollIntervalSec int    `env:"RUNNER_POLL_INTERVAL_SECONDS" envDefault:"1" validate:"min=1,max=60"`
	RunnerReapIntervalSec int    `env:"RUNNER_REAP_INTERVAL_SECONDS" envDefault:"30" validate:"min=1,max=300"`
	RunnerReapGraceSec    int    `env:"RUNNER_REAP_GRACE_SECONDS" envDefault:"15" validate:"min=0,max=300"`

	SchedulerID              string `env:"SCHEDULER_ID"`
	SchedulerPollIntervalSec int    `env:"SCHEDULER_POLL_INTERVAL_SECONDS" envDefault:"5" validate:"min=1,max=60"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	DefaultQueryTimeoutSeconds int `env:"DEFAULT_QUERY_TIMEOUT_SECONDS" envDefault:"30" validate:"min=1,max=3600"`
	DefaultMaxRows             int `env:"DEFAULT_MAX_ROWS" envDefault:"10000" validate:"min=1,max=1000000"`
}

// Load resolves secrets (env < <NAME>_FILE < /run/secrets/), parses the
// result into Config, and validates it.
func Load() (*Config, error) {
	mgr, err := secrets.NewManager("/run/secrets")
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	cfg := &Config{}
	opts := env.Options{Environment: mgr.Environ()}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
