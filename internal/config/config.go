// Package config provides configuration management for go-worker-shell.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// RuntimeMode selects how the worker command is resolved.
type RuntimeMode int

const (
	// ModeDevelopment runs the worker script through an interpreter from
	// the current working directory.
	ModeDevelopment RuntimeMode = iota

	// ModePackaged runs the bundled worker executable next to the shell.
	ModePackaged
)

// String returns a human-readable name for the mode.
func (m RuntimeMode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModePackaged:
		return "packaged"
	default:
		return "unknown"
	}
}

// BuildMode returns the mode baked in at build time.
//
//	go build -tags release ./cmd/worker-shell   # packaged
//	go build ./cmd/worker-shell                 # development
func BuildMode() RuntimeMode {
	return buildMode
}

// Config holds all configuration options for the shell.
type Config struct {
	// Worker (development mode)
	Interpreter string `json:"interpreter" toml:"interpreter"`
	ScriptDir   string `json:"script_dir" toml:"script_dir"`
	ScriptName  string `json:"script_name" toml:"script_name"`

	// Worker (packaged mode)
	ResourceName string `json:"resource_name" toml:"resource_name"`
	ResourceDir  string `json:"resource_dir" toml:"resource_dir"` // "" = next to the binary

	// Teardown
	KillByName      bool          `json:"kill_by_name" toml:"kill_by_name"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" toml:"shutdown_timeout"`

	// UI
	TUIEnabled bool `json:"tui" toml:"tui"`

	// Observability
	MetricsAddr string `json:"metrics_addr" toml:"metrics_addr"` // "" = disabled
	Verbose     bool   `json:"verbose" toml:"verbose"`
	LogFormat   string `json:"log_format" toml:"log_format"` // json, text
	LogLevel    string `json:"log_level" toml:"log_level"`
	LogFile     string `json:"log_file" toml:"log_file"` // "" = stderr (or cache dir with TUI)

	// Diagnostic modes
	PrintCmd bool `json:"print_cmd" toml:"-"`
	Check    bool `json:"check" toml:"-"`

	// ConfigPath is the TOML file the values were loaded from, if any.
	ConfigPath string `json:"config_path" toml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interpreter: "python",
		ScriptDir:   "rag",
		ScriptName:  "rag_api_server.py",

		ResourceName: defaultResourceName(),

		KillByName:      true,
		ShutdownTimeout: 2 * time.Second,

		TUIEnabled: true,

		MetricsAddr: "",
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// defaultResourceName returns the bundled worker's file name for this host.
func defaultResourceName() string {
	if runtime.GOOS == "windows" {
		return "rag_api_server.exe"
	}
	return "rag_api_server"
}

// EffectiveLogFile returns where logs should be written.
// With the TUI enabled, stderr belongs to the terminal renderer, so an
// empty LogFile falls back to a file under the user cache directory.
func (c *Config) EffectiveLogFile() string {
	if c.LogFile != "" || !c.TUIEnabled {
		return c.LogFile
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "worker-shell", "worker-shell.log")
}
