package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `feedflow:
  name: "TestApp"
  version: "1.0"
source:
  url: "wss://example.com/socket"
  channels: ["flow-alerts", "gex:SPY"]
sinks:
  flow_alerts:
    type: sqlite
    path: data/flow_alerts.db
  spot_greeks:
    type: parquet
    dir: data/spot_greeks
    batch_size: 50
`

// writeTempConfig writes content to a temporary config file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UW_TOKEN", "")
	t.Setenv("FEEDFLOW_URL", "")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feedflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Feedflow.Name)
	}
	if len(cfg.Source.Channels) != 2 {
		t.Errorf("unexpected channels: %v", cfg.Source.Channels)
	}
	if cfg.Source.IdleTimeout != 30*time.Second {
		t.Errorf("expected default idle timeout, got %s", cfg.Source.IdleTimeout)
	}
	if cfg.Reconnect.MaxAttempts != 5 || cfg.Reconnect.BaseDelay != 5*time.Second || cfg.Reconnect.MaxDelay != time.Minute {
		t.Errorf("unexpected reconnect defaults: %+v", cfg.Reconnect)
	}
	if cfg.Batch.Size != 500 || cfg.Batch.Interval != 10*time.Second {
		t.Errorf("unexpected batch defaults: %+v", cfg.Batch)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("UW_TOKEN", " secret ")
	t.Setenv("FEEDFLOW_URL", "wss://override.example.com/socket")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.Token != "secret" {
		t.Errorf("expected trimmed token, got %q", cfg.Source.Token)
	}
	if cfg.Source.URL != "wss://override.example.com/socket" {
		t.Errorf("expected url override, got %q", cfg.Source.URL)
	}
}

func TestBatchFor(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	size, interval := cfg.BatchFor("spot_greeks")
	if size != 50 || interval != 10*time.Second {
		t.Errorf("spot_greeks: got %d/%s", size, interval)
	}
	size, interval = cfg.BatchFor("flow_alerts")
	if size != 500 || interval != 10*time.Second {
		t.Errorf("flow_alerts: got %d/%s", size, interval)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no channels", func(c *Config) { c.Source.Channels = nil }, "source.channels"},
		{"unparseable url", func(c *Config) { c.Source.URL = "wss://bad host/%zz" }, "source.url"},
		{"http url", func(c *Config) { c.Source.URL = "https://api.example.com/socket" }, "scheme"},
		{"url without host", func(c *Config) { c.Source.URL = "wss:///socket" }, "missing host"},
		{"duplicate channel", func(c *Config) { c.Source.Channels = []string{"gex:SPY", "gex:SPY"} }, "twice"},
		{"ping not shorter than idle", func(c *Config) { c.Source.PingTimeout = c.Source.IdleTimeout }, "ping_timeout"},
		{"max below base", func(c *Config) { c.Reconnect.MaxDelay = time.Second }, "max_delay"},
		{"jitter out of range", func(c *Config) { c.Reconnect.Jitter = 2 }, "jitter"},
		{"zero batch size", func(c *Config) { c.Batch.Size = 0 }, "batch.size"},
		{"unknown sink type", func(c *Config) {
			c.Sinks["flow_alerts"] = SinkConfig{Type: "csv", Path: "x"}
		}, "not supported"},
		{"kafka without brokers", func(c *Config) {
			c.Sinks["flow_alerts"] = SinkConfig{Type: SinkTypeKafka}
		}, "brokers"},
		{"sqlite without path", func(c *Config) {
			c.Sinks["flow_alerts"] = SinkConfig{Type: SinkTypeSQLite}
		}, "path"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Source.Channels = []string{"flow-alerts"}
			cfg.Sinks = map[string]SinkConfig{
				"flow_alerts": {Type: SinkTypeSQLite, Path: "db"},
			}
			tc.mutate(&cfg)
			err := validateConfig(&cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveEnvSpecificPath(t *testing.T) {
	dir := t.TempDir()
	prodPath := filepath.Join(dir, "prod.yml")
	if err := os.WriteFile(prodPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	paths := map[string]string{environmentProduction: prodPath}

	t.Setenv(appEnvVar, "prod")
	if got := resolveEnvSpecificPath("", "default.yml", paths); got != prodPath {
		t.Errorf("expected production path, got %q", got)
	}
	if got := resolveEnvSpecificPath("custom.yml", "default.yml", paths); got != "custom.yml" {
		t.Errorf("explicit path must win, got %q", got)
	}

	t.Setenv(appEnvVar, "")
	if got := resolveEnvSpecificPath("", "default.yml", paths); got != "default.yml" {
		t.Errorf("expected default path in development, got %q", got)
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
