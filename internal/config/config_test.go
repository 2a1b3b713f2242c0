package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1.5d", 36 * time.Hour, false},
		{"", 0, true},
		{"xd", 0, true},
		{"10", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
watch:
  dirs: ["/var/log/app"]
  poll_interval: 30s
escalation:
  threshold: 3
  time_threshold: 2d
retention:
  period: 2w
owners:
  default: oncall
  components:
    api: alice
storage:
  backend: sqlite
  path: /tmp/bugs.db
notifications:
  channels:
    - name: ops
      type: webhook
      url: https://hooks.example.com/ops
      enabled: true
      priority: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Watch.PollInterval.Std() != 30*time.Second {
		t.Errorf("poll interval = %v", cfg.Watch.PollInterval.Std())
	}
	// Unset keys keep their defaults.
	if cfg.Watch.QueueSize != 1000 {
		t.Errorf("queue size = %d, want default 1000", cfg.Watch.QueueSize)
	}
	if cfg.Escalation.Threshold != 3 || cfg.Escalation.TimeThreshold.Std() != 48*time.Hour {
		t.Errorf("escalation = %+v", cfg.Escalation)
	}
	if cfg.Retention.Period.Std() != 14*24*time.Hour {
		t.Errorf("retention period = %v", cfg.Retention.Period.Std())
	}
	if cfg.Owners.Components["api"] != "alice" || cfg.Owners.Default != "oncall" {
		t.Errorf("owners = %+v", cfg.Owners)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if len(cfg.Notifications.Channels) != 1 || cfg.Notifications.Channels[0].Name != "ops" {
		t.Errorf("channels = %+v", cfg.Notifications.Channels)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			"no watch dirs",
			func(c *Config) { c.Watch.Dirs = nil },
			"watch.dirs",
		},
		{
			"no enabled channel",
			func(c *Config) { c.Notifications.Channels[0].Enabled = false },
			"at least one channel",
		},
		{
			"webhook without url",
			func(c *Config) {
				c.Notifications.Channels = []ChannelConfig{{Name: "ops", Type: "webhook", Enabled: true}}
			},
			"requires a url",
		},
		{
			"unknown channel type",
			func(c *Config) {
				c.Notifications.Channels = []ChannelConfig{{Name: "x", Type: "carrier-pigeon", Enabled: true}}
			},
			"unknown type",
		},
		{
			"unknown backend",
			func(c *Config) { c.Storage.Backend = "etcd" },
			"storage.backend",
		},
		{
			"bad tracker severity",
			func(c *Config) {
				c.Tracker.Enabled = true
				c.Tracker.MinSeverity = "urgent"
			},
			"invalid severity",
		},
		{
			"custom pattern without regex",
			func(c *Config) { c.CustomPatterns = []PatternConfig{{Name: "mine"}} },
			"name and regex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Watch.Dirs = []string{"/var/log"}
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_DefaultsWithDirsPass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Dirs = []string{"/var/log"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
