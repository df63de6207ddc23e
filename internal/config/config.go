package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	LogConsole       bool
	OTELEnabled      bool
	OTELEndpoint     string
	OpenAPIPath      string

	AuthIssuer  string
	AuthJWKSURL string

	RecoHistoryLimit  int
	RecoCandidatePool int
	RecoDefaultLimit  int
	StoreQueryTimeout time.Duration
	RequestTimeout    time.Duration

	RateLimitDefault       string
	SettingsReloadInterval time.Duration
	DLQRetention           time.Duration
	DLQGCInterval          time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := environment(getenv)
	cfg := &Config{
		DatabaseURL:      env.getEnv("DATABASE_URL", ""),
		ServerPort:       env.getEnv("SERVER_PORT", "8080"),
		FrontendURL:      env.getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       env.getEnvBool("ENABLE_HSTS", false),
		RedisURL:         env.getEnv("REDIS_URL", ""),
		RabbitMQURL:      env.getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: env.getEnvInt("RABBITMQ_PREFETCH", 10),
		WorkerDebugMode:  env.getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  env.getEnvBool("SERVER_DEBUG_MODE", false),
		LogConsole:       env.getEnv("LOG_FORMAT", "json") == "console",
		OTELEnabled:      env.getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     env.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OpenAPIPath:      env.getEnv("OPENAPI_PATH", "api/openapi/openapi.yaml"),

		AuthIssuer:  env.getEnv("AUTH_ISSUER", ""),
		AuthJWKSURL: env.getEnv("AUTH_JWKS_URL", ""),

		RecoHistoryLimit:  env.getEnvInt("RECO_HISTORY_LIMIT", 100),
		RecoCandidatePool: env.getEnvInt("RECO_CANDIDATE_POOL", 200),
		RecoDefaultLimit:  env.getEnvInt("RECO_DEFAULT_LIMIT", 10),
		StoreQueryTimeout: env.getEnvDuration("STORE_QUERY_TIMEOUT", 5*time.Second),
		RequestTimeout:    env.getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		RateLimitDefault:       env.getEnv("RATE_LIMIT_DEFAULT", "5-S"),
		SettingsReloadInterval: env.getEnvDuration("SETTINGS_RELOAD_INTERVAL", 30*time.Second),
		DLQRetention:           env.getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		DLQGCInterval:          env.getEnvDuration("DLQ_GC_INTERVAL", time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RecoDefaultLimit < 1 || c.RecoDefaultLimit > 50 {
		errs = append(errs, fmt.Errorf("RECO_DEFAULT_LIMIT must be between 1 and 50, got %d", c.RecoDefaultLimit))
	}
	if c.RecoHistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("RECO_HISTORY_LIMIT must be positive, got %d", c.RecoHistoryLimit))
	}
	if c.RecoCandidatePool < 1 {
		errs = append(errs, fmt.Errorf("RECO_CANDIDATE_POOL must be positive, got %d", c.RecoCandidatePool))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, fmt.Errorf("RABBITMQ_PREFETCH must be positive, got %d", c.RabbitMQPrefetch))
	}
	return errors.Join(errs...)
}

// RequireAuth reports whether token verification is configured
func (c *Config) RequireAuth() error {
	if c.AuthJWKSURL == "" {
		return errors.New("AUTH_JWKS_URL is required")
	}
	return nil
}

type environment func(string) string

func (e environment) getEnv(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e environment) getEnvBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e environment) getEnvInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e environment) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
