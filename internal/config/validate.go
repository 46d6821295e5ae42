package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Interpreter) == "" {
		errs = append(errs, ValidationError{
			Field:   "interpreter",
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(cfg.ScriptName) == "" {
		errs = append(errs, ValidationError{
			Field:   "script_name",
			Message: "must not be empty",
		})
	}

	// The script directory is joined onto the working directory
	if filepath.IsAbs(cfg.ScriptDir) {
		errs = append(errs, ValidationError{
			Field:   "script_dir",
			Message: fmt.Sprintf("must be relative to the working directory (got %q)", cfg.ScriptDir),
		})
	}

	// The resource name is a file name, never a path
	if strings.TrimSpace(cfg.ResourceName) == "" {
		errs = append(errs, ValidationError{
			Field:   "resource_name",
			Message: "must not be empty",
		})
	} else if strings.ContainsAny(cfg.ResourceName, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "resource_name",
			Message: fmt.Sprintf("must be a file name, not a path (got %q)", cfg.ResourceName),
		})
	}

	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "shutdown_timeout",
			Message: "must be positive",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if cfg.PrintCmd && cfg.Check {
		errs = append(errs, ValidationError{
			Field:   "print_cmd",
			Message: "--print-cmd and --check are mutually exclusive",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
