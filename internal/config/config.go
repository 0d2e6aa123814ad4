package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource       string        `env:"DB_SOURCE"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"postgres"`
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`

	// DuelTTL is how long a duel stays live after it is sent.
	DuelTTL time.Duration `env:"DUEL_TTL" envDefault:"1h"`
	// DuelSweepInterval enables the background expiry sweep when positive.
	// Expiry is otherwise evaluated lazily on access.
	DuelSweepInterval time.Duration `env:"DUEL_SWEEP_INTERVAL" envDefault:"0s"`
	// AdminToken gates /duel/expire and /competitive/reset-all when set.
	AdminToken string `env:"ADMIN_TOKEN"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading environment directly")
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DuelTTL <= 0 {
		return fmt.Errorf("DUEL_TTL must be positive, got %s", c.DuelTTL)
	}
	if c.DuelSweepInterval < 0 {
		return fmt.Errorf("DUEL_SWEEP_INTERVAL must not be negative, got %s", c.DuelSweepInterval)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
