package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	// GatewayURL is the notification-delivery service. Empty in local runs
	// selects the in-memory gateway.
	GatewayURL        string `env:"GATEWAY_URL"         validate:"required_unless=Env local,omitempty,url"`
	GatewayTimeoutSec int    `env:"GATEWAY_TIMEOUT_SEC" envDefault:"5" validate:"min=1,max=60"`

	Timezone        string   `env:"TIMEZONE"          envDefault:"UTC" validate:"required,timezone"`
	SouthernRegions []string `env:"SOUTHERN_REGIONS"  envDefault:"AR,AU,BO,BR,BW,CL,FJ,LS,MG,MU,MZ,NA,NZ,PE,PY,SZ,UY,ZA,ZM,ZW" validate:"dive,len=2,alpha"`
	ResyncBatchSize int      `env:"RESYNC_BATCH_SIZE" envDefault:"200" validate:"min=1,max=5000"`

	// PushgatewayURL receives the resync command's metrics. Unset skips the push.
	PushgatewayURL string `env:"PUSHGATEWAY_URL" validate:"omitempty,url"`
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
	switch strings.ToLower(c.LogLevel) {
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

// Location is the zone reminder times and calendar days are computed in.
// Timezone is validated by Load, so the fallback only covers hand-built configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UsesMemoryGateway reports whether reminders go to the in-process gateway
// instead of the notification-delivery service.
func (c *Config) UsesMemoryGateway() bool {
	return c.Env == "local" && c.GatewayURL == ""
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSec) * time.Second
}
