// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Public base URL, used for absolute pagination links
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Cache (Redis)
	RedisURL     string        `env:"REDIS_URL,required,notEmpty"`
	AuthCacheTTL time.Duration `env:"AUTH_CACHE_TTL" envDefault:"5m"`
	RedisPool    int           `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitLoginEnabled bool `env:"RATE_LIMIT_LOGIN_ENABLED" envDefault:"true"`
	RateLimitLoginRPS     int  `env:"RATE_LIMIT_LOGIN_RPS" envDefault:"1"`
	RateLimitLoginBurst   int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"5"`

	// Comma-separated list of allowed origins (e.g., "https://app.example.com,vscode-webview://x")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limits in bytes
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	MaxAvatarSize      int64 `env:"MAX_AVATAR_SIZE" envDefault:"10485760"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	Storage    StorageConfig    `envPrefix:"STORAGE_"`
	LLM        LLMConfig        `envPrefix:"LLM_"`
	Completion CompletionConfig `envPrefix:"COMPLETION_"`
}

// StorageConfig configures the S3-compatible avatar store.
type StorageConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"false"`
	Endpoint  string        `env:"ENDPOINT"`
	AccessKey string        `env:"ACCESS_KEY"`
	SecretKey string        `env:"SECRET_KEY"`
	Bucket    string        `env:"BUCKET" envDefault:"avatars"`
	Region    string        `env:"REGION" envDefault:""`
	UseSSL    bool          `env:"USE_SSL" envDefault:"false"`
	URLExpiry time.Duration `env:"URL_EXPIRY" envDefault:"1h"`
}

// LLMConfig configures the OpenAI-compatible completion backend.
type LLMConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	APIKey          string        `env:"API_KEY"`
	BaseURL         string        `env:"BASE_URL" envDefault:""`
	DefaultModel    string        `env:"DEFAULT_MODEL" envDefault:"llama2"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ContextMessages int           `env:"CONTEXT_MESSAGES" envDefault:"50"`
	ContextTokens   int           `env:"CONTEXT_TOKENS" envDefault:"6000"`
}

// CompletionConfig tunes the completion stream worker.
type CompletionConfig struct {
	WorkerEnabled bool          `env:"WORKER_ENABLED" envDefault:"true"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"10"`
	BlockTimeout  time.Duration `env:"BLOCK_TIMEOUT" envDefault:"5s"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"2s"`
	ClaimIdle     time.Duration `env:"CLAIM_IDLE" envDefault:"5m"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins splits CORS_ALLOWED_ORIGINS on commas, dropping
// blanks.
func (c *Config) GetCORSAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Enabled {
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("STORAGE_ENDPOINT is required when STORAGE_ENABLED=true"))
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			errs = append(errs, errors.New("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENABLED=true"))
		}
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("LLM_API_KEY or LLM_BASE_URL is required when LLM_ENABLED=true"))
	}
	switch c.AppEnv {
	case "development", "staging", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, staging, production, test", c.AppEnv))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
