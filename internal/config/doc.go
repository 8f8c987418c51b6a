// Package config provides configuration management for the Mercury usage exporter.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - MERCURY_CLIENT_ID: OAuth client id for the token endpoint
//   - MERCURY_API_SUBSCRIPTION_KEY: API subscription key header value
//   - MERCURY_TOKEN_URL: OAuth token endpoint URL
//   - MERCURY_TIMEZONE: IANA time zone for the account's calendar days
//   - MERCURY_POLL_MINUTES: Polling interval in minutes (minimum: 1)
//   - MERCURY_REPORTING_DELAY_DAYS: Days the provider's data lags behind now
//   - MERCURY_HTTP_PORT: HTTP server port (1-65535)
//   - MERCURY_LOG_LEVEL: Log level (debug, info, warn, error)
//
// The refresh token is deliberately NOT part of the configuration: it is a
// secret routed to the token store via the reauth command.
//
// Example configuration file (config.yaml):
//
//	customer_id: "1234567"
//	account_id: "9876543"
//	service_id: "555000111"
//	client_id: "fc07dca7-cd6a-4578-952b-de7a7afaebdc"
//	api_subscription_key: "0123456789abcdef"
//
//	poll_minutes: 15
//	timezone: "Pacific/Auckland"
//	reporting_delay_days: 2
//	http_port: 9772
//	log_level: "info"
//
//	mqtt:
//	  enabled: true
//	  broker: "homeassistant.local:1883"
//	  topic_prefix: "mercury"
package config
