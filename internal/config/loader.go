package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader builds a Config from defaults, a config file, .env files and
// BARSENTRY_* environment variables, in that order.
type Loader struct {
	path     string
	envFiles []string
}

// NewLoader creates a loader for the config file at path. An empty path
// loads defaults only.
func NewLoader(path string) *Loader {
	return &Loader{path: path, envFiles: []string{".env"}}
}

// WithEnvFiles replaces the .env files read before environment overrides.
// Missing files are ignored.
func (l *Loader) WithEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// Load reads, overrides and validates the configuration. Validation
// warnings do not fail the load; call Validate to inspect them.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.path != "" {
		if err := decodeFile(l.path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFiles(l.envFiles); err != nil {
		return nil, err
	}
	if errs := cfg.ApplyEnvOverrides(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errs.Errors())
	}
	return cfg, nil
}

// Load reads configuration from path using the default .env lookup.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// decodeFile parses path into cfg according to its extension.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("%w: unknown keys %v", ErrInvalidConfig, undecoded)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return nil
}

func loadEnvFiles(files []string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies BARSENTRY_* environment variables. Malformed
// numeric values are reported rather than ignored.
func (c *Config) ApplyEnvOverrides() ValidationErrors {
	var errs ValidationErrors

	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env, field string, dst *int) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s: not an integer: %q", env, v)})
			return
		}
		*dst = n
	}
	setBool := func(env, field string, dst *bool) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s: not a boolean: %q", env, v)})
			return
		}
		*dst = b
	}

	setString("BARSENTRY_STORAGE_DRIVER", &c.Storage.Driver)
	setString("BARSENTRY_STORAGE_PATH", &c.Storage.Path)
	setString("BARSENTRY_DATABASE_URL", &c.Storage.DSN)
	setInt("BARSENTRY_MAX_CONNECTIONS", "storage.max_connections", &c.Storage.MaxConnections)

	setInt("BARSENTRY_WORKERS", "analysis.workers", &c.Analysis.Workers)
	setBool("BARSENTRY_BASELINE_EXCLUDE_SELF", "analysis.baseline_exclude_self", &c.Analysis.BaselineExcludeSelf)
	if v := os.Getenv("BARSENTRY_VERIFIED_HUMANS"); v != "" {
		ids, err := parseIDList(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "analysis.verified_humans", Message: err.Error()})
		} else {
			c.Analysis.VerifiedHumans = ids
		}
	}

	if v := os.Getenv("BARSENTRY_WATCH_PATHS"); v != "" {
		c.Watch.Paths = filepath.SplitList(v)
	}
	setInt("BARSENTRY_DEBOUNCE_MS", "watch.debounce_ms", &c.Watch.DebounceMs)

	setString("BARSENTRY_LOG_LEVEL", &c.Logging.Level)
	setString("BARSENTRY_LOG_FORMAT", &c.Logging.Format)
	setString("BARSENTRY_LOG_OUTPUT", &c.Logging.Output)
	setString("BARSENTRY_LOG_PATH", &c.Logging.FilePath)

	setBool("BARSENTRY_METRICS_ENABLED", "metrics.enabled", &c.Metrics.Enabled)
	setString("BARSENTRY_METRICS_ADDR", &c.Metrics.ListenAddr)

	return errs
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveConfig writes cfg to path in the format implied by its extension.
// Unknown extensions are written as TOML.
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// DSNs may carry credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadOrCreate loads the configuration at path, writing defaults there
// first when the file does not exist. The bool reports creation.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SaveConfig(DefaultConfig(), path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		cfg, err := Load(path)
		return cfg, true, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
