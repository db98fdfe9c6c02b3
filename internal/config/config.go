package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"API_BASE_URL"` specify the environment variable name;
// `default:""` provides a fallback when the variable is not set.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`      // e.g., debug, info, warn, error
	API       APIConfig
	Cache     CacheConfig
	Storage   StorageConfig
	DevServer ServerConfig
}

// APIConfig points the cart client at the marketplace API.
type APIConfig struct {
	BaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
}

// CacheConfig tunes the navigation cache and prefetch scheduling.
type CacheConfig struct {
	MaxEntries         int           `envconfig:"NAV_CACHE_MAX_ENTRIES" default:"50"`
	EntryTTL           time.Duration `envconfig:"NAV_CACHE_ENTRY_TTL" default:"5m"`
	SweepInterval      time.Duration `envconfig:"NAV_CACHE_SWEEP_INTERVAL" default:"1m"`
	PrefetchBatchSize  int           `envconfig:"PREFETCH_BATCH_SIZE" default:"3"`
	PrefetchBatchDelay time.Duration `envconfig:"PREFETCH_BATCH_DELAY" default:"100ms"`
}

// StorageConfig locates the local persistent key-value database.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:"storefront.db"`
}

// ServerConfig holds dev API server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"DEV_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"DEV_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"DEV_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"DEV_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process configuration: %w", err)
	}
	return &cfg, nil
}
