// Package config handles configuration loading and validation for workboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Root is the backlog root; it contains WorkDir.
	Root    string   `yaml:"root"`
	WorkDir string   `yaml:"work_dir"`
	Ignore  []string `yaml:"ignore"`

	Server       ServerConfig       `yaml:"server"`
	Workers      WorkersConfig      `yaml:"workers"`
	Manifest     ManifestConfig     `yaml:"manifest"`
	Watch        WatchConfig        `yaml:"watch"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Archive      ArchiveConfig      `yaml:"archive"`
	History      HistoryConfig      `yaml:"history"`
	Database     DatabaseConfig     `yaml:"database"`

	DataDir string `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// WorkersConfig configures the worker coordinator and worker runners.
type WorkersConfig struct {
	// LogLines is the size of each worker's log ring buffer.
	LogLines     int           `yaml:"log_lines"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Command is the agent command run by `workboard worker`.
	Command []string `yaml:"command"`
	// ReservationTTL is written as expires_at when a runner starts a task.
	ReservationTTL time.Duration `yaml:"reservation_ttl"`
}

// ManifestConfig controls the derived manifest.json.
type ManifestConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// WatchConfig controls the file system watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// ReservationsConfig controls the expired reservation sweep. A zero interval
// disables it.
type ReservationsConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ArchiveConfig names the folder deleted items are moved to.
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig controls the sqlite worker history.
type HistoryConfig struct {
	Enabled *bool `yaml:"enabled"`
	// Retention is how long worker events are kept. Older events are pruned
	// when the app starts.
	Retention time.Duration `yaml:"retention"`
}

// DatabaseConfig tunes the sqlite connection.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	enabled := true
	historyEnabled := true
	return Config{
		Root:    ".",
		WorkDir: "work",
		Ignore:  []string{},
		Server: ServerConfig{
			Addr:         "127.0.0.1:7420",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Workers: WorkersConfig{
			LogLines:       50,
			PollInterval:   5 * time.Second,
			ReservationTTL: time.Hour,
		},
		Manifest: ManifestConfig{Enabled: &enabled},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
		Archive: ArchiveConfig{Dir: "archive"},
		History: HistoryConfig{Enabled: &historyEnabled, Retention: 30 * 24 * time.Hour},
		Database: DatabaseConfig{
			MaxOpenConns: 2,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir

			// A relative root is resolved against the config file location.
			if cfg.Root != "" && !filepath.IsAbs(cfg.Root) && cfg.Root != "." {
				cfg.Root = filepath.Join(filepath.Dir(configPath), cfg.Root)
			}
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Root == "" {
		c.Root = defaults.Root
	}
	if c.WorkDir == "" {
		c.WorkDir = defaults.WorkDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Workers.LogLines == 0 {
		c.Workers.LogLines = defaults.Workers.LogLines
	}
	if c.Workers.PollInterval == 0 {
		c.Workers.PollInterval = defaults.Workers.PollInterval
	}
	if c.Workers.ReservationTTL == 0 {
		c.Workers.ReservationTTL = defaults.Workers.ReservationTTL
	}
	if c.Manifest.Enabled == nil {
		c.Manifest.Enabled = defaults.Manifest.Enabled
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = defaults.Archive.Dir
	}
	if c.History.Enabled == nil {
		c.History.Enabled = defaults.History.Enabled
	}
	if c.History.Retention == 0 {
		c.History.Retention = defaults.History.Retention
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
}

// ManifestEnabled reports whether manifest.json is rewritten after mutations.
func (c *Config) ManifestEnabled() bool {
	return c.Manifest.Enabled == nil || *c.Manifest.Enabled
}

// HistoryEnabled reports whether worker history is recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// WorkPath returns the absolute-or-relative path of the work dir.
func (c *Config) WorkPath() string {
	return filepath.Join(c.Root, c.WorkDir)
}

// ArchivePath returns where archived items are moved.
func (c *Config) ArchivePath() string {
	if filepath.IsAbs(c.Archive.Dir) {
		return c.Archive.Dir
	}
	return filepath.Join(c.Root, c.Archive.Dir)
}

// DatabaseFile returns the path to the sqlite database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "workboard.db")
}
