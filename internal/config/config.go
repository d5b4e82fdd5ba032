// Package config handles configuration loading, validation, and management for barsentry.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete barsentry configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Storage configuration for the baseline store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Analysis configuration for replay scoring.
	Analysis AnalysisConfig `toml:"analysis" json:"analysis" yaml:"analysis"`

	// Watch configuration for replay directory monitoring.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration for the Prometheus endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// StorageConfig holds baseline store configuration.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver" json:"driver" yaml:"driver"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `toml:"dsn" json:"dsn" yaml:"dsn"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// MaxConnections caps open database connections. 0 means unlimited.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// WriterQueue is the number of pending writes the store writer buffers.
	WriterQueue int `toml:"writer_queue" json:"writer_queue" yaml:"writer_queue"`
}

// AnalysisConfig holds replay analysis configuration.
type AnalysisConfig struct {
	// Workers bounds concurrent replay analyses in a batch.
	Workers int `toml:"workers" json:"workers" yaml:"workers"`

	// Force re-analyzes games that are already stored.
	Force bool `toml:"force" json:"force" yaml:"force"`

	// BaselineExcludeSelf compares each player against the population
	// without their own stored games.
	BaselineExcludeSelf bool `toml:"baseline_exclude_self" json:"baseline_exclude_self" yaml:"baseline_exclude_self"`

	// Extensions are the file extensions treated as replay documents.
	Extensions []string `toml:"extensions" json:"extensions" yaml:"extensions"`

	// VerifiedHumans are user ids marked as verified in reports.
	VerifiedHumans []int64 `toml:"verified_humans" json:"verified_humans" yaml:"verified_humans"`
}

// WatchConfig holds replay directory monitoring configuration.
type WatchConfig struct {
	// Paths are directories or files to monitor.
	Paths []string `toml:"paths" json:"paths" yaml:"paths"`

	// DebounceMs is how long a file must stay unchanged before analysis.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// PollIntervalMs is how often pending files are checked.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// ScanExisting analyzes files already present when watching starts.
	ScanExisting bool `toml:"scan_existing" json:"scan_existing" yaml:"scan_existing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file for file output.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Driver:         "sqlite",
			Path:           filepath.Join(dir, "barsentry.db"),
			BusyTimeoutMs:  5000,
			MaxConnections: 4,
			WriterQueue:    64,
		},
		Analysis: AnalysisConfig{
			Workers:             runtime.NumCPU(),
			BaselineExcludeSelf: true,
			Extensions:          []string{".json"},
			VerifiedHumans:      []int64{},
		},
		Watch: WatchConfig{
			Paths:          []string{},
			DebounceMs:     2000,
			PollIntervalMs: 100,
			ScanExisting:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "barsentry.log"),
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
	}
}

// DataDir returns the barsentry data directory.
// BARSENTRY_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("BARSENTRY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Analysis.Extensions = slices.Clone(c.Analysis.Extensions)
	clone.Analysis.VerifiedHumans = slices.Clone(c.Analysis.VerifiedHumans)
	clone.Watch.Paths = slices.Clone(c.Watch.Paths)
	return &clone
}

// BusyTimeout returns the SQLite busy timeout.
func (s StorageConfig) BusyTimeout() time.Duration {
	return time.Duration(s.BusyTimeoutMs) * time.Millisecond
}

// Debounce returns the stability window.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// PollInterval returns the pending-file poll interval.
func (w WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}
