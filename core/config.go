package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the sync library.
// It supports two-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Functional options (highest priority)
//
// File-based configuration is applied through WithConfigFile, which makes
// its position in the option list determine its precedence explicitly.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithRequestsPerMinute(28),
//	    WithCacheTTL(30*time.Minute),
//	    WithRedisStore("redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// API configuration for the remote GraphQL endpoint
	API APIConfig `json:"api" yaml:"api"`

	// RateLimit configuration for the request pipeline
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Retry configuration for transient failures
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Cache configuration for read-shaped queries
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Store configuration for persisted state (stats, cache snapshots)
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Sync holds the default plan-shaping bits; callers can still pass
	// a per-batch SyncConfig to the planner directly.
	Sync SyncConfig `json:"sync" yaml:"sync"`
}

// APIConfig describes the remote GraphQL endpoint and how to speak to it.
type APIConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// UserAgent overrides the default "anisync/<version>" header when set.
	UserAgent string        `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// RateLimitConfig shapes the pipeline's request spacing. The default
// rate stays below the server's advertised 60 req/min ceiling.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	// DispatchBudget bounds one dispatch-loop pass; when exceeded with
	// items still queued, the loop yields and reschedules itself after
	// RescheduleDelay so newly posted operations are not starved.
	DispatchBudget  time.Duration `json:"dispatch_budget" yaml:"dispatch_budget"`
	RescheduleDelay time.Duration `json:"reschedule_delay" yaml:"reschedule_delay"`
}

// Interval returns the minimum spacing between consecutive dequeues.
func (c RateLimitConfig) Interval() time.Duration {
	rpm := c.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	return time.Minute / time.Duration(rpm)
}

// RetryConfig defines per-class exponential backoff for the operation
// wrapper. Base delays grow as base * 2^attempt, capped at MaxDelay.
// Rate-limit and server-error waits get ±JitterRatio jitter with MinDelay
// as the floor; network waits are deterministic.
type RetryConfig struct {
	MaxAttempts          int           `json:"max_attempts" yaml:"max_attempts"`
	RateLimitBaseDelay   time.Duration `json:"rate_limit_base_delay" yaml:"rate_limit_base_delay"`
	ServerErrorBaseDelay time.Duration `json:"server_error_base_delay" yaml:"server_error_base_delay"`
	NetworkBaseDelay     time.Duration `json:"network_base_delay" yaml:"network_base_delay"`
	MaxDelay             time.Duration `json:"max_delay" yaml:"max_delay"`
	MinDelay             time.Duration `json:"min_delay" yaml:"min_delay"`
	JitterRatio          float64       `json:"jitter_ratio" yaml:"jitter_ratio"`
}

// CacheConfig controls the read cache for search queries.
type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
}

// StoreConfig contains persisted-state storage configuration.
// Supports in-memory storage (default) or Redis for durable state.
// The MaxSize limit only applies to in-memory storage.
type StoreConfig struct {
	Provider        string        `json:"provider" yaml:"provider"`
	RedisURL        string        `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	MaxSize         int           `json:"max_size" yaml:"max_size"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

// TelemetryConfig contains observability configuration for metrics and
// distributed tracing. This is an optional module; telemetry is only
// initialized when Enabled=true. The endpoint should be an OTLP receiver.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	Endpoint       string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceName    string  `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled bool    `json:"tracing_enabled" yaml:"tracing_enabled"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate"`
	Insecure       bool    `json:"insecure" yaml:"insecure"`
}

// Option is a functional option for configuring the library.
// Options are applied in order and can return an error if the
// configuration is invalid.
//
// Example:
//
//	func WithAggressiveRetries() Option {
//	    return func(c *Config) error {
//	        c.Retry.MaxAttempts = 10
//	        return nil
//	    }
//	}
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults: the public
// AniList endpoint, 28 requests per minute, five retry attempts, and a
// 30-minute read cache backed by in-memory storage.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint: DefaultEndpoint,
			Timeout:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
			DispatchBudget:    250 * time.Millisecond,
			RescheduleDelay:   10 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxAttempts:          5,
			RateLimitBaseDelay:   5 * time.Second,
			ServerErrorBaseDelay: 3 * time.Second,
			NetworkBaseDelay:     1 * time.Second,
			MaxDelay:             60 * time.Second,
			MinDelay:             1 * time.Second,
			JitterRatio:          0.1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultSearchCacheTTL,
		},
		Store: StoreConfig{
			Provider:        "inmemory",
			MaxSize:         1000,
			CleanupInterval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Sync: DefaultSyncConfig(),
	}
}

// NewConfig creates a validated configuration from defaults plus options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile merges configuration from a JSON or YAML file into c.
// Fields absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	// Clean the path to prevent directory traversal attacks
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// This method is called automatically by NewConfig() but can also be called
// manually after modifying configuration.
//
// Validation rules:
//   - API endpoint must be a valid http(s) URL
//   - Requests per minute must stay within the server's advertised ceiling
//   - Retry attempts must be at least 1
//   - Redis URL is required when the Redis store provider is selected
//   - Telemetry sampling rate must be within [0, 1]
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid API endpoint: %q", c.API.Endpoint),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.RateLimit.RequestsPerMinute < 1 || c.RateLimit.RequestsPerMinute > ServerRequestsPerMinute {
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("requests per minute must be between 1 and %d, got %d", ServerRequestsPerMinute, c.RateLimit.RequestsPerMinute),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "cache TTL must be positive when the cache is enabled",
			Err:     ErrInvalidConfiguration,
		}
	}

	switch strings.ToLower(c.Store.Provider) {
	case "inmemory", "memory", "":
	case "redis":
		if c.Store.RedisURL == "" {
			return &SyncError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the Redis store provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown store provider %q", c.Store.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return &SyncError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("telemetry sampling rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// WithConfigFile loads a JSON or YAML config file. Options placed after
// it in the option list override the file's values.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithEndpoint overrides the GraphQL endpoint. Useful for tests and proxies.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		if endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.API.Endpoint = endpoint
		return nil
	}
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Config) error {
		c.API.UserAgent = ua
		return nil
	}
}

// WithHTTPTimeout sets the underlying HTTP client timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive: %w", ErrInvalidConfiguration)
		}
		c.API.Timeout = d
		return nil
	}
}

// WithRequestsPerMinute adjusts the pipeline's self-imposed rate ceiling.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *Config) error {
		c.RateLimit.RequestsPerMinute = rpm
		return nil
	}
}

// WithRetryAttempts sets the maximum attempts per operation.
func WithRetryAttempts(n int) Option {
	return func(c *Config) error {
		c.Retry.MaxAttempts = n
		return nil
	}
}

// WithCacheTTL sets the read-cache expiry window.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Config) error {
		c.Cache.TTL = d
		return nil
	}
}

// WithCacheDisabled turns the read cache off entirely.
func WithCacheDisabled() Option {
	return func(c *Config) error {
		c.Cache.Enabled = false
		return nil
	}
}

// WithRedisStore selects the Redis store provider with the given URL.
func WithRedisStore(redisURL string) Option {
	return func(c *Config) error {
		if redisURL == "" {
			return fmt.Errorf("redis URL cannot be empty: %w", ErrMissingConfiguration)
		}
		c.Store.Provider = "redis"
		c.Store.RedisURL = redisURL
		return nil
	}
}

// WithLogLevel sets the minimum log level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			c.Logging.Level = strings.ToLower(level)
			return nil
		default:
			return fmt.Errorf("unknown log level %q: %w", level, ErrInvalidConfiguration)
		}
	}
}

// WithLogFormat selects json or text log output.
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		switch strings.ToLower(format) {
		case "json", "text":
			c.Logging.Format = strings.ToLower(format)
			return nil
		default:
			return fmt.Errorf("unknown log format %q: %w", format, ErrInvalidConfiguration)
		}
	}
}

// WithTelemetry enables OTLP telemetry export to the given endpoint.
func WithTelemetry(endpoint, serviceName string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = endpoint
		c.Telemetry.ServiceName = serviceName
		return nil
	}
}

// WithSyncConfig replaces the default plan-shaping configuration.
func WithSyncConfig(sc SyncConfig) Option {
	return func(c *Config) error {
		c.Sync = sc
		return nil
	}
}
