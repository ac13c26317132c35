// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Port        string `env:"PORT" default:"8080"`
	StoreDriver string `env:"STORE_DRIVER" default:"mongo"`
	MongoURI    string `env:"MONGODB_URI"`
	DBName      string `env:"DB_NAME" default:"user_credit"`
	JWTSecret   string `env:"JWT_SECRET"`
	RedisURL    string `env:"REDIS_URL"`
	Timezone    string `env:"TIMEZONE" default:"Local"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	FromEmail    string `env:"FROM_EMAIL"`

	SummaryCacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" default:"5m"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			return errors.New("MONGODB_URI is required when STORE_DRIVER=mongo")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, cfg.StoreDriver)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is not a valid location: %w", err)
	}
	if cfg.SummaryCacheTTL <= 0 {
		return errors.New("SUMMARY_CACHE_TTL must be positive")
	}
	return nil
}

// Location returns the time zone that defines calendar days.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
