package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smart-stay/internal/email"
)

// Key under which the SmartThings refresh token is kept in the credential store.
const REFRESH_TOKEN_KEY = "smartthings_refresh_token"

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute" yaml:"per_minute"`
	Burst     int `mapstructure:"burst" yaml:"burst"`
}

// Binding of a logical power action to a SmartThings device and command.
type DeviceBinding struct {
	DeviceID string `mapstructure:"device_id" yaml:"device_id"`
	Command  string `mapstructure:"command" yaml:"command"`
}

type SmartThingsConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	// Bootstrap refresh token. A token found in the credential store takes precedence.
	RefreshToken string `mapstructure:"refresh_token" yaml:"refresh_token"`

	TokenURL string `mapstructure:"token_url" yaml:"token_url"`
	APIURL   string `mapstructure:"api_url" yaml:"api_url"`

	// Timeout for every outbound call to the provider.
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`

	Component        string   `mapstructure:"component" yaml:"component"`
	Capability       string   `mapstructure:"capability" yaml:"capability"`
	FallbackCategory string   `mapstructure:"fallback_category" yaml:"fallback_category"`
	Keywords         []string `mapstructure:"keywords" yaml:"keywords"` // Label substrings preferred when re-resolving a device

	On  DeviceBinding `mapstructure:"on" yaml:"on"`
	Off DeviceBinding `mapstructure:"off" yaml:"off"`
}

type PowerConfig struct {
	// Identical reports from one source within this window are treated as noise.
	NoiseWindow time.Duration `mapstructure:"noise_window" yaml:"noise_window"`
	NoiseStore  string        `mapstructure:"noise_store" yaml:"noise_store"` // memory or redis
}

type SchedulerConfig struct {
	// Interval between reconciliation passes. Zero disables the in-process loop.
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	CheckInLead time.Duration `mapstructure:"checkin_lead" yaml:"checkin_lead"`
	CheckOutLag time.Duration `mapstructure:"checkout_lag" yaml:"checkout_lag"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type Config struct {
	// Secret for sealing stored credentials and signing operator tokens. Must be set in production.
	Secret   string `mapstructure:"secret" yaml:"secret"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	Listen   string `mapstructure:"listen" yaml:"listen"`

	// Comma separated list of allowed CIDR networks. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks" yaml:"allowed_networks"`

	// Static API key for mutating routes. Empty leaves the routes open.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Operator token TTL in minutes.
	OperatorTokenTTL uint `mapstructure:"operator_token_ttl" yaml:"operator_token_ttl"`

	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" yaml:"rate_limit"`
	SmartThings SmartThingsConfig `mapstructure:"smartthings" yaml:"smartthings"`
	Power       PowerConfig       `mapstructure:"power" yaml:"power"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Redis       RedisConfig       `mapstructure:"redis" yaml:"redis"`

	Storage Storage `mapstructure:"storage" yaml:"storage"`

	Email email.SMTPConfig `mapstructure:"email" yaml:"email"`
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from config.yaml and environment variables and returns a Config struct.
// Nested keys map to environment variables with "_" separators, e.g. SMARTTHINGS_CLIENT_ID.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, path := range configFile {
		v.SetConfigFile(path)
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, environment and defaults still apply
		var notFound viper.ConfigFileNotFoundError
		if len(configFile) > 0 || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Convert relative sqlite path to absolute instance folder
	if cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
		if cfg.Storage.SQLite.Path == ":memory:" {
			// In-memory database, do nothing
		} else if !os.IsPathSeparator(cfg.Storage.SQLite.Path[0]) {
			cfg.Storage.SQLite.Path = fmt.Sprintf("%s/%s", getConfigPath(), strings.TrimPrefix(cfg.Storage.SQLite.Path, "./"))
		}
	}

	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			return nil, fmt.Errorf("SECRET configuration variable is required in production")
		}
		slog.Warn("Secret is not set. Stored credentials will not be sealed. Do not use in production.")
	}

	if cfg.SmartThings.ClientID == "" || cfg.SmartThings.ClientSecret == "" {
		slog.Warn("SmartThings client credentials are not set, token refresh will fail")
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SmartThings.Timeout <= 0 {
		return fmt.Errorf("smartthings.timeout must be positive, got %s", c.SmartThings.Timeout)
	}
	if c.SmartThings.RefreshInterval <= 0 {
		return fmt.Errorf("smartthings.refresh_interval must be positive, got %s", c.SmartThings.RefreshInterval)
	}
	if c.Power.NoiseWindow < 0 {
		return fmt.Errorf("power.noise_window must not be negative")
	}
	switch c.Power.NoiseStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown noise store %q", c.Power.NoiseStore)
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("scheduler.interval must not be negative")
	}
	return nil
}
