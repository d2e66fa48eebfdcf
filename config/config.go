package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Scheduler process tuning.
	PollIntervalSec     int `env:"POLL_INTERVAL_SEC" envDefault:"60" validate:"min=1,max=300"`
	ReminderIntervalSec int `env:"REMINDER_INTERVAL_SEC" envDefault:"3600" validate:"min=60"`
	JanitorIntervalSec  int `env:"JANITOR_INTERVAL_SEC" envDefault:"300" validate:"min=10"`
	WorkerCount         int `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=100"`
	ClaimTimeoutSec     int `env:"CLAIM_TIMEOUT_SEC" envDefault:"600" validate:"min=30"`
	ExecTimeoutSec      int `env:"EXEC_TIMEOUT_SEC" envDefault:"30" validate:"min=1,max=600"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AlertEmail   string `env:"ALERT_EMAIL"    validate:"omitempty,email"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

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
