package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"civicrank/adapters/redis"
	"civicrank/adapters/sqlx"
)

// EnvPrefix prefixes every environment override, e.g. CIVICRANK_SERVER_ADDRESS.
const EnvPrefix = "CIVICRANK"

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	Environment  Environment        `mapstructure:"environment" json:"environment" split_words:"true"`
	Profile      string             `mapstructure:"profile" json:"profile" split_words:"true"`
	Server       ServerConfig       `mapstructure:"server" json:"server" split_words:"true"`
	Storage      StorageConfig      `mapstructure:"storage" json:"storage" split_words:"true"`
	Logging      LoggingConfig      `mapstructure:"logging" json:"logging" split_words:"true"`
	Engine       EngineConfig       `mapstructure:"engine" json:"engine" split_words:"true"`
	Jobs         JobsConfig         `mapstructure:"jobs" json:"jobs" split_words:"true"`
	Integrations IntegrationsConfig `mapstructure:"integrations" json:"integrations" split_words:"true"`
	Security     SecurityConfig     `mapstructure:"security" json:"security" split_words:"true"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `mapstructure:"address" json:"address" split_words:"true"`
	PathPrefix        string        `mapstructure:"path_prefix" json:"path_prefix" split_words:"true"`
	CORSOrigin        string        `mapstructure:"cors_origin" json:"cors_origin" split_words:"true"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" json:"read_timeout" split_words:"true"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" json:"write_timeout" split_words:"true"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" split_words:"true"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" json:"read_header_timeout" split_words:"true"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" split_words:"true"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `mapstructure:"adapter" json:"adapter" split_words:"true"`
	Migrate bool         `mapstructure:"migrate" json:"migrate" split_words:"true"`
	Redis   redis.Config `mapstructure:"redis" json:"redis" split_words:"true"`
	SQL     sqlx.Config  `mapstructure:"sql" json:"sql" split_words:"true"`
	File    FileConfig   `mapstructure:"file" json:"file" split_words:"true"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `mapstructure:"path" json:"path" split_words:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `mapstructure:"level" json:"level" split_words:"true"`
	Format     string            `mapstructure:"format" json:"format" split_words:"true"`
	Output     string            `mapstructure:"output" json:"output" split_words:"true"`
	Attributes map[string]string `mapstructure:"attributes" json:"attributes,omitempty" split_words:"true"`
}

// EngineConfig tunes the points and notification engine.
type EngineConfig struct {
	DispatchMode   string        `mapstructure:"dispatch_mode" json:"dispatch_mode" split_words:"true"`
	LikeWindow     time.Duration `mapstructure:"like_window" json:"like_window" split_words:"true"`
	Retention      time.Duration `mapstructure:"retention" json:"retention" split_words:"true"`
	TrendingWindow time.Duration `mapstructure:"trending_window" json:"trending_window" split_words:"true"`
	RecentWindow   time.Duration `mapstructure:"recent_window" json:"recent_window" split_words:"true"`
	SeedLevels     bool          `mapstructure:"seed_levels" json:"seed_levels" split_words:"true"`
	// LeaderboardSize is how many stored totals are loaded into the board at startup.
	LeaderboardSize  int `mapstructure:"leaderboard_size" json:"leaderboard_size" split_words:"true"`
	DAURetentionDays int `mapstructure:"dau_retention_days" json:"dau_retention_days" split_words:"true"`
}

// JobsConfig schedules background maintenance.
type JobsConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled" split_words:"true"`
	CleanupSchedule string `mapstructure:"cleanup_schedule" json:"cleanup_schedule" split_words:"true"`
}

// IntegrationsConfig configures outbound event delivery.
type IntegrationsConfig struct {
	WebhookEndpoints []string      `mapstructure:"webhook_endpoints" json:"webhook_endpoints,omitempty" split_words:"true"`
	WebhookEvents    []string      `mapstructure:"webhook_events" json:"webhook_events,omitempty" split_words:"true"`
	WebhookTimeout   time.Duration `mapstructure:"webhook_timeout" json:"webhook_timeout" split_words:"true"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `mapstructure:"enable_rate_limit" json:"enable_rate_limit" split_words:"true"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit" split_words:"true"`
	APIKeys         []string        `mapstructure:"api_keys" json:"api_keys,omitempty" split_words:"true"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute" json:"requests_per_minute" split_words:"true"`
	BurstSize         int           `mapstructure:"burst_size" json:"burst_size" split_words:"true"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval" split_words:"true"`
}

// Load builds the configuration from defaults and environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var configExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	supported := false
	for _, e := range configExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("config file must have one of the extensions: %s", strings.Join(configExtensions, ", "))
	}
	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	return nil
}

// LoadFromFile reads a JSON, YAML or TOML file over the defaults.
// Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(),
			File: FileConfig{
				Path: "./data/civicrank.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Engine: EngineConfig{
			DispatchMode:     "async",
			LikeWindow:       time.Hour,
			Retention:        30 * 24 * time.Hour,
			TrendingWindow:   7 * 24 * time.Hour,
			RecentWindow:     3 * 24 * time.Hour,
			SeedLevels:       true,
			LeaderboardSize:  1000,
			DAURetentionDays: 7,
		},
		Jobs: JobsConfig{
			Enabled:         true,
			CleanupSchedule: "@daily",
		},
		Integrations: IntegrationsConfig{
			WebhookEvents:  []string{"points_awarded", "level_up"},
			WebhookTimeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("engine config: %v", err))
	}
	if err := c.Jobs.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("jobs config: %v", err))
	}
	if err := c.Integrations.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("integrations config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
