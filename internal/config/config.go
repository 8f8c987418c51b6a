package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinPollMinutes        = 1   // Minimum polling interval in minutes
	MinPort               = 1   // Minimum valid port number
	MaxPort               = 65535
	MaxReportingDelayDays = 30  // Provider never lags this far behind
	MaxAPITimeout         = 300 // Seconds

	// Default values
	DefaultTokenURL           = "https://login.mercury.co.nz/fc07dca7-cd6a-4578-952b-de7a7afaebdc/b2c_1a_signup_signin/oauth2/v2.0/token"
	DefaultBaseAPIURL         = "https://apis.mercury.co.nz/selfservice/v1"
	DefaultPollMinutes        = 15
	DefaultReportingDelayDays = 2
	DefaultTimezone           = "Pacific/Auckland"
	DefaultAPITimeout         = 30 // Usage API timeout in seconds
	DefaultHTTPPort           = 9772
	DefaultLogLevel           = "info"
	DefaultTokenStorePath     = "tokens.json"
	DefaultHistoryPath        = "history.db"
)

// MQTTConfig holds the optional Home Assistant MQTT publisher settings
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"` // host:port
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// Config represents the application configuration
type Config struct {
	// Account identity, collected once at onboarding
	CustomerID         string `yaml:"customer_id"`
	AccountID          string `yaml:"account_id"`
	ServiceID          string `yaml:"service_id"`
	ClientID           string `yaml:"client_id"`
	APISubscriptionKey string `yaml:"api_subscription_key"`
	Scope              string `yaml:"scope"`
	TokenURL           string `yaml:"token_url"`
	BaseAPIURL         string `yaml:"base_api_url"`

	// Runtime options
	PollMinutes        int    `yaml:"poll_minutes"`
	Timezone           string `yaml:"timezone"`
	ReportingDelayDays *int   `yaml:"reporting_delay_days"` // Pointer to distinguish 0 from unset
	APITimeoutSeconds  int    `yaml:"api_timeout_seconds"`
	HTTPPort           int    `yaml:"http_port"`
	LogLevel           string `yaml:"log_level"`
	TokenStorePath     string `yaml:"token_store_path"`
	HistoryPath        string `yaml:"history_path"`
	MQTT               MQTTConfig `yaml:"mqtt"`
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 -- Config file path is provided by the operator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.BaseAPIURL == "" {
		cfg.BaseAPIURL = DefaultBaseAPIURL
	}
	if cfg.PollMinutes == 0 {
		cfg.PollMinutes = DefaultPollMinutes
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	// Only apply the default if ReportingDelayDays is nil (not set), not if it's explicitly 0
	if cfg.ReportingDelayDays == nil {
		delay := DefaultReportingDelayDays
		cfg.ReportingDelayDays = &delay
	}
	if cfg.APITimeoutSeconds == 0 {
		cfg.APITimeoutSeconds = DefaultAPITimeout
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.TokenStorePath == "" {
		cfg.TokenStorePath = DefaultTokenStorePath
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = DefaultHistoryPath
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("MERCURY_CLIENT_ID"); val != "" {
		cfg.ClientID = val
	}
	if val := os.Getenv("MERCURY_API_SUBSCRIPTION_KEY"); val != "" {
		cfg.APISubscriptionKey = val
	}
	if val := os.Getenv("MERCURY_TOKEN_URL"); val != "" {
		cfg.TokenURL = val
	}
	if val := os.Getenv("MERCURY_TIMEZONE"); val != "" {
		cfg.Timezone = val
	}
	if val := os.Getenv("MERCURY_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	if val := os.Getenv("MERCURY_POLL_MINUTES"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid MERCURY_POLL_MINUTES: must be an integer, got %q", val)
		}
		cfg.PollMinutes = i
	}

	if val := os.Getenv("MERCURY_REPORTING_DELAY_DAYS"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid MERCURY_REPORTING_DELAY_DAYS: must be an integer, got %q", val)
		}
		cfg.ReportingDelayDays = &i
	}

	if val := os.Getenv("MERCURY_HTTP_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid MERCURY_HTTP_PORT: must be an integer, got %q", val)
		}
		cfg.HTTPPort = i
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.CustomerID == "" {
		return fmt.Errorf("customer_id is required")
	}
	if cfg.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if cfg.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.APISubscriptionKey == "" {
		return fmt.Errorf("api_subscription_key is required")
	}

	if cfg.PollMinutes < MinPollMinutes {
		return fmt.Errorf("poll_minutes must be at least %d, got %d", MinPollMinutes, cfg.PollMinutes)
	}

	if *cfg.ReportingDelayDays < 0 {
		return fmt.Errorf("reporting_delay_days cannot be negative, got %d", *cfg.ReportingDelayDays)
	}
	if *cfg.ReportingDelayDays > MaxReportingDelayDays {
		return fmt.Errorf("reporting_delay_days must not exceed %d, got %d", MaxReportingDelayDays, *cfg.ReportingDelayDays)
	}

	if cfg.APITimeoutSeconds <= 0 {
		return fmt.Errorf("api_timeout_seconds must be positive, got %d", cfg.APITimeoutSeconds)
	}
	if cfg.APITimeoutSeconds > MaxAPITimeout {
		return fmt.Errorf("api_timeout_seconds should not exceed %d seconds, got %d", MaxAPITimeout, cfg.APITimeoutSeconds)
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}

	return nil
}

// PollInterval returns the polling interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMinutes) * time.Minute
}

// APITimeout returns the usage API timeout as a duration
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// ReportingDelay returns the number of days the provider's usage data lags behind now
func (c *Config) ReportingDelay() int {
	if c.ReportingDelayDays == nil {
		return DefaultReportingDelayDays
	}
	return *c.ReportingDelayDays
}

// Location resolves the configured time zone, falling back to the host
// local zone when the name cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
