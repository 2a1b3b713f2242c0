// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logbug/logbug/internal/storage"
	"github.com/logbug/logbug/internal/types"
)

// Duration is a time.Duration that unmarshals from YAML strings,
// accepting the standard units plus "d" (days) and "w" (weeks).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or \"7d\"")
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ParseDuration parses a duration string, extending time.ParseDuration
// with "d" (days) and "w" (weeks) suffixes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	switch unit := s[len(s)-1]; unit {
	case 'd', 'w':
		n, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %q", s)
		}
		day := float64(24 * time.Hour)
		if unit == 'w' {
			day *= 7
		}
		return time.Duration(n * day), nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	return parsed, nil
}

// Config is the full configuration file.
type Config struct {
	Watch          WatchConfig         `yaml:"watch"`
	Process        ProcessConfig       `yaml:"process"`
	Escalation     EscalationConfig    `yaml:"escalation"`
	Retention      RetentionConfig     `yaml:"retention"`
	Owners         OwnersConfig        `yaml:"owners"`
	Storage        StorageConfig       `yaml:"storage"`
	Tracker        TrackerConfig       `yaml:"tracker"`
	Notifications  NotificationsConfig `yaml:"notifications"`
	CustomPatterns []PatternConfig     `yaml:"custom_patterns"`
}

// WatchConfig controls log scanning.
type WatchConfig struct {
	// Dirs are the directories scanned for log files. Required.
	Dirs []string `yaml:"dirs"`
	// Extensions filters files by suffix
	// Default: .log, .txt, .out, .err
	Extensions []string `yaml:"extensions"`
	// PollInterval is the scan cadence
	// Default: 10s
	PollInterval Duration `yaml:"poll_interval"`
	// QueueSize bounds the pending event queue
	// Default: 1000
	QueueSize int `yaml:"queue_size"`
	// MaxLineLength truncates longer log lines
	// Default: 8192
	MaxLineLength int `yaml:"max_line_length"`
}

// ProcessConfig controls event processing.
type ProcessConfig struct {
	// Interval is the queue drain cadence
	// Default: 5s
	Interval Duration `yaml:"interval"`
	// BatchSize bounds events drained per tick
	// Default: 100
	BatchSize int `yaml:"batch_size"`
}

// EscalationConfig controls severity escalation.
type EscalationConfig struct {
	// Threshold is the frequency a bug must exceed
	// Default: 5
	Threshold int `yaml:"threshold"`
	// TimeThreshold escalates bugs still recurring this long after
	// first seen.
	// Default: 24h
	TimeThreshold Duration `yaml:"time_threshold"`
}

// RetentionConfig controls resolved-bug retention.
type RetentionConfig struct {
	// Period keeps resolved bugs this long after their last occurrence
	// Default: 30d
	Period Duration `yaml:"period"`
	// SweepInterval is the cleanup cadence
	// Default: 1h
	SweepInterval Duration `yaml:"sweep_interval"`
}

// OwnersConfig controls owner assignment.
type OwnersConfig struct {
	// Default owner when no component matches
	// Default: "unassigned"
	Default string `yaml:"default"`
	// Components maps component names to owners
	Components map[string]string `yaml:"components"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "json" or "sqlite"
	// Default: "json"
	Backend string `yaml:"backend"`
	// Path is the database or state file
	// Default: ".logbug/bugs.json"
	Path string `yaml:"path"`
}

// TrackerConfig controls external issue filing.
type TrackerConfig struct {
	// Enabled turns issue filing on
	Enabled bool `yaml:"enabled"`
	// Path is the local tracker state file
	// Default: ".logbug/tracker.json"
	Path string `yaml:"path"`
	// MinSeverity is the filing threshold
	// Default: "critical"
	MinSeverity string `yaml:"min_severity"`
}

// NotificationsConfig controls alert dispatch.
type NotificationsConfig struct {
	// RateLimitWindow suppresses repeat alerts per (kind, bug)
	// Default: 5m
	RateLimitWindow Duration `yaml:"rate_limit_window"`
	// SendTimeout bounds each delivery attempt
	// Default: 10s
	SendTimeout Duration `yaml:"send_timeout"`
	// SummaryInterval is the digest cadence
	// Default: 24h
	SummaryInterval Duration `yaml:"summary_interval"`
	// Channels are the delivery destinations. At least one must be
	// enabled.
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig is one notification destination.
type ChannelConfig struct {
	// Name identifies the channel in logs
	Name string `yaml:"name"`
	// Type is "webhook" or "console"
	Type string `yaml:"type"`
	// URL is the webhook endpoint; required for webhook channels
	URL string `yaml:"url"`
	// Enabled turns the channel on
	Enabled bool `yaml:"enabled"`
	// Priority channels receive escalation alerts
	Priority bool `yaml:"priority"`
	// Digest channels receive the periodic summary
	Digest bool `yaml:"digest"`
}

// PatternConfig is one user-defined error pattern, matched after the
// built-ins.
type PatternConfig struct {
	Name     string `yaml:"name"`
	Regex    string `yaml:"regex"`
	Severity string `yaml:"severity"`
	Category string `yaml:"category"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Extensions:    []string{".log", ".txt", ".out", ".err"},
			PollInterval:  Duration(10 * time.Second),
			QueueSize:     1000,
			MaxLineLength: 8192,
		},
		Process: ProcessConfig{
			Interval:  Duration(5 * time.Second),
			BatchSize: 100,
		},
		Escalation: EscalationConfig{
			Threshold:     5,
			TimeThreshold: Duration(24 * time.Hour),
		},
		Retention: RetentionConfig{
			Period:        Duration(30 * 24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Owners: OwnersConfig{
			Default: "unassigned",
		},
		Storage: StorageConfig{
			Backend: storage.BackendJSON,
			Path:    ".logbug/bugs.json",
		},
		Tracker: TrackerConfig{
			Path:        ".logbug/tracker.json",
			MinSeverity: string(types.SeverityCritical),
		},
		Notifications: NotificationsConfig{
			RateLimitWindow: Duration(5 * time.Minute),
			SendTimeout:     Duration(10 * time.Second),
			SummaryInterval: Duration(24 * time.Hour),
			Channels: []ChannelConfig{
				{Name: "console", Type: "console", Enabled: true, Priority: true, Digest: true},
			},
		},
	}
}

// Load reads the file at path over the defaults and validates the
// result. An empty path returns validated defaults.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the file at path over the defaults without validating.
// Management commands that never scan use this; the daemon path goes
// through Load.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if len(c.Watch.Dirs) == 0 {
		return fmt.Errorf("watch.dirs must name at least one directory")
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("watch.poll_interval must be positive")
	}
	if c.Process.Interval <= 0 {
		return fmt.Errorf("process.interval must be positive")
	}

	if c.Storage.Backend != storage.BackendJSON && c.Storage.Backend != storage.BackendSQLite {
		return fmt.Errorf("storage.backend must be %q or %q", storage.BackendJSON, storage.BackendSQLite)
	}

	if c.Tracker.Enabled {
		if c.Tracker.Path == "" {
			return fmt.Errorf("tracker.path is required when the tracker is enabled")
		}
		if !types.Severity(c.Tracker.MinSeverity).IsValid() {
			return fmt.Errorf("tracker.min_severity: invalid severity %q", c.Tracker.MinSeverity)
		}
	}

	enabled := 0
	for i, ch := range c.Notifications.Channels {
		if !ch.Enabled {
			continue
		}
		enabled++
		switch ch.Type {
		case "webhook":
			if ch.URL == "" {
				return fmt.Errorf("notifications.channels[%d]: webhook channel %q requires a url", i, ch.Name)
			}
		case "console":
		default:
			return fmt.Errorf("notifications.channels[%d]: unknown type %q", i, ch.Type)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("notifications.channels must enable at least one channel")
	}

	for i, p := range c.CustomPatterns {
		if p.Name == "" || p.Regex == "" {
			return fmt.Errorf("custom_patterns[%d]: name and regex are required", i)
		}
		if p.Severity != "" && !types.Severity(p.Severity).IsValid() {
			return fmt.Errorf("custom_patterns[%d]: invalid severity %q", i, p.Severity)
		}
	}
	return nil
}
