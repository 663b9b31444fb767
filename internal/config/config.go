package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/tagvault/internal/classifier"
	"github.com/pbaille/tagvault/internal/retention"
)

// Config holds all tagvault configuration.
type Config struct {
	Retention RetentionConfig  `yaml:"retention"`
	Sweep     SweepConfig      `yaml:"sweep"`
	Keywords  ClassifierConfig `yaml:"classifier"`
	Ingest    IngestConfig     `yaml:"ingest"`
	Audit     AuditConfig      `yaml:"audit"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// RetentionConfig is the tag -> TTL table, in seconds.
type RetentionConfig struct {
	DefaultTTLSeconds int64            `yaml:"default_ttl_seconds"`
	TTLSeconds        map[string]int64 `yaml:"ttl_seconds"`
}

// SweepConfig configures the sweep scheduler.
type SweepConfig struct {
	IntervalSeconds float64 `yaml:"interval_seconds"`
}

// ClassifierConfig overrides the built-in keyword table when non-empty.
type ClassifierConfig struct {
	Keywords map[string][]string `yaml:"keywords"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes"` // 0 = unlimited
}

// AuditConfig configures the persistent audit journal.
type AuditConfig struct {
	DBPath string `yaml:"db_path"` // empty = in-memory only
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	p := retention.Default()
	return &Config{
		Retention: RetentionConfig{
			DefaultTTLSeconds: int64(p.DefaultTTL() / time.Second),
			TTLSeconds:        p.Seconds(),
		},
		Sweep:   SweepConfig{IntervalSeconds: 1},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultPath returns ~/.tagvault/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tagvault", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.Audit.DBPath = expandHome(cfg.Audit.DBPath)
	return cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TAGVAULT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TAGVAULT_AUDIT_DB"); v != "" {
		c.Audit.DBPath = v
	}
	if v := os.Getenv("TAGVAULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Sweep.IntervalSeconds > maxIntervalSeconds || c.SweepInterval() <= 0 {
		return fmt.Errorf("sweep.interval_seconds must be between 1ns and %.0fs, got %v",
			maxIntervalSeconds, c.Sweep.IntervalSeconds)
	}
	if c.Ingest.MaxPayloadBytes < 0 {
		return errors.New("ingest.max_payload_bytes must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

// Policy builds the retention policy.
func (c *Config) Policy() (*retention.Policy, error) {
	return retention.FromSeconds(c.Retention.TTLSeconds, c.Retention.DefaultTTLSeconds)
}

// Classifier builds the keyword classifier.
func (c *Config) Classifier() *classifier.Keyword {
	if len(c.Keywords.Keywords) == 0 {
		return classifier.Default()
	}
	return classifier.NewKeyword(c.Keywords.Keywords)
}

const maxIntervalSeconds = float64(math.MaxInt64 / int64(time.Second))

// SweepInterval returns the sweep period as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalSeconds * float64(time.Second))
}
