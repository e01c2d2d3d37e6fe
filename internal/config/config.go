// Package config loads the server configuration from the process environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration.
type Config struct {
	URI                string        `env:"MONGODB_URI,required,notEmpty"`
	DefaultDatabase    string        `env:"DEFAULT_DATABASE" envDefault:"GondiCustomerDb"`
	ResourceCollection string        `env:"MONGO_MCP_RESOURCE_COLLECTION" envDefault:"PEMLeads"`
	LogLevel           string        `env:"MONGO_MCP_LOG_LEVEL" envDefault:"info"`
	MaxInFlight        int           `env:"MONGO_MCP_MAX_IN_FLIGHT" envDefault:"16"`
	ConnectTimeout     time.Duration `env:"MONGO_MCP_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
