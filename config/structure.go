package config

import (
	"time"
)

// Config is the root SDK configuration.
type Config struct {
	API   APIConfig   `koanf:"api"`
	Retry RetryConfig `koanf:"retry"`
	Log   LogConfig   `koanf:"log"`
}

// APIConfig holds the connection settings and secret credentials.
type APIConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	SecretID  string        `koanf:"secret_id" validate:"required"`
	SecretKey string        `koanf:"secret_key" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
	UserAgent string        `koanf:"user_agent"`
}

// RetryConfig holds the retry policy applied by the request executor.
type RetryConfig struct {
	MaxRetries           int           `koanf:"max_retries" validate:"gte=0"`
	RetryableStatusCodes []int         `koanf:"retryable_status_codes" validate:"dive,gte=100,lt=600"`
	Backoff              string        `koanf:"backoff" validate:"oneof=linear exponential"`
	InitialDelay         time.Duration `koanf:"initial_delay" validate:"gte=0"`
	MaxDelay             time.Duration `koanf:"max_delay" validate:"gte=0"`
	RespectRetryAfter    bool          `koanf:"respect_retry_after"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty"`
}
