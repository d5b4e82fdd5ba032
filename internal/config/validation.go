package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// Watched paths may be created after startup.
	return strings.HasPrefix(e.Field, "watch.paths")
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "required field is missing"}
}

// Validate checks the whole configuration and returns every problem found,
// warnings included. It returns nil when there is nothing to report.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateAnalysis(&c.Analysis)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Driver {
	case "sqlite":
		if s.Path == "" {
			errs = append(errs, RequiredFieldError("storage.path"))
		}
	case "postgres":
		if s.DSN == "" {
			errs = append(errs, RequiredFieldError("storage.dsn"))
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver: %s (valid: sqlite, postgres)", s.Driver),
		})
	}

	if s.BusyTimeoutMs < 0 || s.BusyTimeoutMs > 600000 {
		errs = append(errs, RangeError("storage.busy_timeout_ms", 0, 600000))
	}
	if s.MaxConnections < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.max_connections",
			Message: "max connections cannot be negative",
		})
	}
	if s.WriterQueue < 1 || s.WriterQueue > 10000 {
		errs = append(errs, RangeError("storage.writer_queue", 1, 10000))
	}

	return errs
}

func validateAnalysis(a *AnalysisConfig) ValidationErrors {
	var errs ValidationErrors

	if a.Workers < 1 || a.Workers > 256 {
		errs = append(errs, RangeError("analysis.workers", 1, 256))
	}
	if len(a.Extensions) == 0 {
		errs = append(errs, RequiredFieldError("analysis.extensions"))
	}
	for i, ext := range a.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("analysis.extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
			})
		}
	}
	for i, id := range a.VerifiedHumans {
		if id <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("analysis.verified_humans[%d]", i),
				Message: fmt.Sprintf("user id must be positive, got %d", id),
			})
		}
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	for i, path := range w.Paths {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.paths[%d]", i),
				Message: fmt.Sprintf("path %s is not accessible: %v", path, err),
			})
		}
	}
	if w.DebounceMs < 0 || w.DebounceMs > 60000 {
		errs = append(errs, RangeError("watch.debounce_ms", 0, 60000))
	}
	if w.PollIntervalMs < 10 || w.PollIntervalMs > 10000 {
		errs = append(errs, RangeError("watch.poll_interval_ms", 10, 10000))
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		return ValidationErrors{{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.ListenAddr, err),
		}}
	}
	return nil
}
