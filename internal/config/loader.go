package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load builds the configuration: an optional .env file first (never
// overriding real environment variables), then envconfig tag processing,
// then validation. Cross-field rules that tags cannot express are checked
// explicitly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Notify.Timezone); err != nil {
		return nil, fmt.Errorf("config: invalid NOTIFY_TIMEZONE %q: %w", cfg.Notify.Timezone, err)
	}
	if cfg.Notify.Transport == "queue" && cfg.AWS.PushQueueURL == "" {
		return nil, fmt.Errorf("config: SQS_PUSH_QUEUE is required for the queue transport")
	}

	return &cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
