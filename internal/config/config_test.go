package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
customer_id: "cust-1"
account_id: "acct-1"
service_id: "svc-1"
client_id: "client-1"
api_subscription_key: "sub-key"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenURL != DefaultTokenURL {
		t.Errorf("TokenURL = %q, want default", cfg.TokenURL)
	}
	if cfg.BaseAPIURL != DefaultBaseAPIURL {
		t.Errorf("BaseAPIURL = %q, want default", cfg.BaseAPIURL)
	}
	if cfg.PollMinutes != DefaultPollMinutes {
		t.Errorf("PollMinutes = %d, want %d", cfg.PollMinutes, DefaultPollMinutes)
	}
	if cfg.Timezone != DefaultTimezone {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, DefaultTimezone)
	}
	if cfg.ReportingDelay() != DefaultReportingDelayDays {
		t.Errorf("ReportingDelay() = %d, want %d", cfg.ReportingDelay(), DefaultReportingDelayDays)
	}
	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.TokenStorePath != DefaultTokenStorePath {
		t.Errorf("TokenStorePath = %q, want %q", cfg.TokenStorePath, DefaultTokenStorePath)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want disabled by default")
	}
}

func TestLoadExplicitZeroDelay(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"reporting_delay_days: 0\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// 0 is a legal value and must not be replaced by the default.
	if cfg.ReportingDelay() != 0 {
		t.Errorf("ReportingDelay() = %d, want explicit 0 preserved", cfg.ReportingDelay())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing customer id", strings.Replace(minimalConfig, `customer_id: "cust-1"`, "", 1), "customer_id is required"},
		{"missing subscription key", strings.Replace(minimalConfig, `api_subscription_key: "sub-key"`, "", 1), "api_subscription_key is required"},
		{"poll interval too small", minimalConfig + "poll_minutes: -5\n", "poll_minutes"},
		{"negative delay", minimalConfig + "reporting_delay_days: -1\n", "reporting_delay_days"},
		{"delay beyond provider lag", minimalConfig + "reporting_delay_days: 45\n", "reporting_delay_days"},
		{"port out of range", minimalConfig + "http_port: 70000\n", "http_port"},
		{"api timeout too large", minimalConfig + "api_timeout_seconds: 900\n", "api_timeout_seconds"},
		{"mqtt enabled without broker", minimalConfig + "mqtt:\n  enabled: true\n", "mqtt.broker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() = nil error for a missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "customer_id: [unclosed")); err == nil {
		t.Fatal("Load() = nil error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERCURY_CLIENT_ID", "env-client")
	t.Setenv("MERCURY_POLL_MINUTES", "5")
	t.Setenv("MERCURY_REPORTING_DELAY_DAYS", "3")
	t.Setenv("MERCURY_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalConfig+"poll_minutes: 30\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClientID != "env-client" {
		t.Errorf("ClientID = %q, want the environment override", cfg.ClientID)
	}
	if cfg.PollMinutes != 5 {
		t.Errorf("PollMinutes = %d, want env value 5 over the file's 30", cfg.PollMinutes)
	}
	if cfg.ReportingDelay() != 3 {
		t.Errorf("ReportingDelay() = %d, want 3", cfg.ReportingDelay())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvOverrideInvalidInteger(t *testing.T) {
	t.Setenv("MERCURY_POLL_MINUTES", "often")

	_, err := Load(writeConfig(t, minimalConfig))
	if err == nil || !strings.Contains(err.Error(), "MERCURY_POLL_MINUTES") {
		t.Fatalf("Load() error = %v, want a MERCURY_POLL_MINUTES parse failure", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"poll_minutes: 20\napi_timeout_seconds: 45\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.PollInterval(); got != 20*time.Minute {
		t.Errorf("PollInterval() = %v, want 20m", got)
	}
	if got := cfg.APITimeout(); got != 45*time.Second {
		t.Errorf("APITimeout() = %v, want 45s", got)
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Pacific/Auckland"}
	if got := cfg.Location().String(); got != "Pacific/Auckland" {
		t.Errorf("Location() = %q, want Pacific/Auckland", got)
	}

	cfg = &Config{Timezone: "Not/AZone"}
	if got := cfg.Location(); got != time.Local {
		t.Errorf("Location() = %v, want fallback to the host zone", got)
	}
}
