package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the TOML layout. Pointers distinguish "unset" from
// zero values so a partial file only overrides what it names.
type fileConfig struct {
	Worker struct {
		Interpreter  *string `toml:"interpreter"`
		ScriptDir    *string `toml:"script_dir"`
		ScriptName   *string `toml:"script_name"`
		ResourceName *string `toml:"resource_name"`
		ResourceDir  *string `toml:"resource_dir"`
	} `toml:"worker"`

	Shutdown struct {
		KillByName *bool   `toml:"kill_by_name"`
		Timeout    *string `toml:"timeout"`
	} `toml:"shutdown"`

	UI struct {
		TUI *bool `toml:"tui"`
	} `toml:"ui"`

	Log struct {
		Format  *string `toml:"format"`
		Level   *string `toml:"level"`
		File    *string `toml:"file"`
		Verbose *bool   `toml:"verbose"`
	} `toml:"log"`

	Metrics struct {
		Addr *string `toml:"addr"`
	} `toml:"metrics"`
}

// LoadFile applies the TOML file at path on top of cfg.
// A missing file is not an error when allowMissing is set.
func LoadFile(cfg *Config, path string, allowMissing bool) error {
	resolved, err := expandPath(path)
	if err != nil {
		return err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", resolved, err)
	}

	setString(&cfg.Interpreter, raw.Worker.Interpreter)
	setString(&cfg.ScriptDir, raw.Worker.ScriptDir)
	setString(&cfg.ScriptName, raw.Worker.ScriptName)
	setString(&cfg.ResourceName, raw.Worker.ResourceName)
	if raw.Worker.ResourceDir != nil {
		cfg.ResourceDir = mustExpand(strings.TrimSpace(*raw.Worker.ResourceDir))
	}

	setBool(&cfg.KillByName, raw.Shutdown.KillByName)
	if raw.Shutdown.Timeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.Shutdown.Timeout))
		if err != nil {
			return fmt.Errorf("parse config %s: shutdown.timeout: %w", resolved, err)
		}
		cfg.ShutdownTimeout = d
	}

	setBool(&cfg.TUIEnabled, raw.UI.TUI)

	setString(&cfg.LogFormat, raw.Log.Format)
	setString(&cfg.LogLevel, raw.Log.Level)
	if raw.Log.File != nil {
		cfg.LogFile = mustExpand(strings.TrimSpace(*raw.Log.File))
	}
	setBool(&cfg.Verbose, raw.Log.Verbose)

	if raw.Metrics.Addr != nil {
		cfg.MetricsAddr = strings.TrimSpace(*raw.Metrics.Addr)
	}

	cfg.ConfigPath = resolved
	return nil
}

func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	if trimmed := strings.TrimSpace(*v); trimmed != "" {
		*dst = trimmed
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func mustExpand(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
