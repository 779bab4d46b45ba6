// Package config defines the daemon configuration. Configuration is loaded
// once at process start and immutable thereafter, following 12-Factor
// principles: OS environment first, then an optional dotenv file. Any missing
// required value or invalid format fails startup immediately.
package config

import (
	"time"
)

// Config is the top-level configuration. Sub-components receive only the
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Database DatabaseConfig
	Notify   NotifyConfig
	AWS      AWSConfig
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds connection and pool tuning parameters.
type DatabaseConfig struct {
	URL               string        `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// NotifyConfig holds the decision engine settings.
type NotifyConfig struct {
	// Timezone anchors every daily counter and the delivery window.
	Timezone string `envconfig:"NOTIFY_TIMEZONE" default:"Asia/Kuala_Lumpur" validate:"required"`

	// Scope partitions run state rows when several deployments share one
	// database.
	StateScope string `envconfig:"NOTIFY_STATE_SCOPE" default:"default" validate:"required"`

	// UserID is the grocery collection owner this deployment watches.
	UserID string `envconfig:"NOTIFY_USER_ID" validate:"required"`

	// PresenceWindow is how long after the last client heartbeat the user
	// still counts as interactive.
	PresenceWindow time.Duration `envconfig:"NOTIFY_PRESENCE_WINDOW" default:"5m"`

	// Transport selects the delivery path.
	Transport string `envconfig:"NOTIFY_TRANSPORT" default:"relay" validate:"oneof=relay queue"`

	// RelayURL is the push relay endpoint; required for the relay transport.
	RelayURL string `envconfig:"NOTIFY_RELAY_URL" validate:"required_if=Transport relay,omitempty,url"`

	// RelayTimeout bounds a single relay request.
	RelayTimeout time.Duration `envconfig:"NOTIFY_RELAY_TIMEOUT" default:"10s"`
}

// AWSConfig holds AWS resource identifiers. The queue URL is required for the
// queue transport; CloudWatch metrics are enabled whenever a region is set.
type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`
	PushQueueURL  string `envconfig:"SQS_PUSH_QUEUE"`
	EnableMetrics bool   `envconfig:"ENABLE_CLOUDWATCH_METRICS" default:"false"`

	// LocalStack support; empty in production.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}
