package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randomizedcoder/go-worker-shell/internal/config"
)

// ErrResourceNotFound is returned when the bundled worker cannot be located.
var ErrResourceNotFound = errors.New("bundled resource not found")

// ResolverConfig names the worker in each mode.
type ResolverConfig struct {
	// Development mode: Interpreter <cwd>/ScriptDir/ScriptName
	Interpreter string
	ScriptDir   string
	ScriptName  string

	// Packaged mode: the bundled executable's file name.
	ResourceName string
}

// ResolverConfigFrom extracts the resolver settings from the shell config.
func ResolverConfigFrom(cfg *config.Config) ResolverConfig {
	return ResolverConfig{
		Interpreter:  cfg.Interpreter,
		ScriptDir:    cfg.ScriptDir,
		ScriptName:   cfg.ScriptName,
		ResourceName: cfg.ResourceName,
	}
}

// ResourceLocator finds files bundled with the application.
type ResourceLocator interface {
	Resolve(name string) (string, error)
}

// Resolve builds the LaunchPlan for mode. In packaged mode a missing
// resource is an error the caller must treat as fatal.
func Resolve(mode config.RuntimeMode, cfg ResolverConfig, locator ResourceLocator) (LaunchPlan, error) {
	switch mode {
	case config.ModeDevelopment:
		cwd, err := os.Getwd()
		if err != nil {
			return LaunchPlan{}, fmt.Errorf("get working directory: %w", err)
		}
		script := filepath.Join(cwd, cfg.ScriptDir, cfg.ScriptName)
		return LaunchPlan{
			Executable: cfg.Interpreter,
			Args:       []string{script},
			Dir:        cwd,
		}, nil

	case config.ModePackaged:
		if locator == nil {
			return LaunchPlan{}, fmt.Errorf("resolve %s: %w: no resource locator", cfg.ResourceName, ErrResourceNotFound)
		}
		exe, err := locator.Resolve(cfg.ResourceName)
		if err != nil {
			return LaunchPlan{}, fmt.Errorf("resolve %s: %w", cfg.ResourceName, err)
		}
		return LaunchPlan{
			Executable: exe,
			Args:       []string{},
			Dir:        filepath.Dir(exe),
		}, nil

	default:
		return LaunchPlan{}, fmt.Errorf("unknown runtime mode %d", mode)
	}
}

// ExecutableDirLocator looks for resources around the running binary.
type ExecutableDirLocator struct {
	// Override is searched first when non-empty.
	Override string

	// BaseDir replaces the running binary's directory (tests).
	BaseDir string
}

// NewExecutableDirLocator creates a locator rooted at the running binary.
func NewExecutableDirLocator(override string) *ExecutableDirLocator {
	return &ExecutableDirLocator{Override: override}
}

// Candidates returns the paths searched for name, in order.
func (l *ExecutableDirLocator) Candidates(name string) ([]string, error) {
	base := l.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate shell executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		base = filepath.Dir(exe)
	}

	var out []string
	if l.Override != "" {
		out = append(out, filepath.Join(l.Override, name))
	}
	out = append(out,
		filepath.Join(base, name),
		filepath.Join(base, "resources", name),
		filepath.Join(base, "..", "Resources", name), // macOS .app bundle
	)
	return out, nil
}

// Resolve returns the absolute path of the first candidate that is a regular file.
func (l *ExecutableDirLocator) Resolve(name string) (string, error) {
	candidates, err := l.Candidates(name)
	if err != nil {
		return "", err
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			return "", err
		}
		return filepath.Clean(abs), nil
	}

	return "", fmt.Errorf("%w: %s (searched %v)", ErrResourceNotFound, name, candidates)
}
