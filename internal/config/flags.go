package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config. Values from the TOML file named by
// -config are applied first; explicit flags override them.
func ParseArgs(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	configPath, explicit := findConfigPath(args)
	if configPath != "" {
		if err := LoadFile(cfg, configPath, !explicit); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("worker-shell", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.Usage = func() {
		fmt.Fprintf(output, `worker-shell - launch a backend worker behind a splash screen

Usage:
  worker-shell [flags]

Build mode: %s (rebuild with -tags release for the packaged layout)

Worker (development mode):
`, BuildMode())
		printFlagCategory(fs, output, []string{"interpreter", "script-dir", "script"})

		fmt.Fprintf(output, "\nWorker (packaged mode):\n")
		printFlagCategory(fs, output, []string{"resource", "resource-dir"})

		fmt.Fprintf(output, "\nShutdown:\n")
		printFlagCategory(fs, output, []string{"kill-by-name", "shutdown-timeout"})

		fmt.Fprintf(output, "\nInterface:\n")
		printFlagCategory(fs, output, []string{"tui"})

		fmt.Fprintf(output, "\nObservability:\n")
		printFlagCategory(fs, output, []string{"metrics", "v", "log-format", "log-level", "log-file"})

		fmt.Fprintf(output, "\nDiagnostics:\n")
		printFlagCategory(fs, output, []string{"config", "print-cmd", "check"})

		fmt.Fprintf(output, `
Examples:
  # Run the development worker with a plain log stream instead of the TUI
  worker-shell -tui=false -log-format text

  # Show what would be launched
  worker-shell --print-cmd

`)
	}

	fs.String("config", configPath, "TOML config file (flags override its values)")

	fs.StringVar(&cfg.Interpreter, "interpreter", cfg.Interpreter, "Interpreter used to run the worker script")
	fs.StringVar(&cfg.ScriptDir, "script-dir", cfg.ScriptDir, "Worker script directory, relative to the working directory")
	fs.StringVar(&cfg.ScriptName, "script", cfg.ScriptName, "Worker script file name")

	fs.StringVar(&cfg.ResourceName, "resource", cfg.ResourceName, "Bundled worker executable name")
	fs.StringVar(&cfg.ResourceDir, "resource-dir", cfg.ResourceDir, "Directory searched first for the bundled worker")

	fs.BoolVar(&cfg.KillByName, "kill-by-name", cfg.KillByName, "Packaged mode: kill the worker by image name if main closes before its PID is known")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "How long to wait for worker teardown on exit")

	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Render the splash and main surfaces in the terminal (use -tui=false for headless)")

	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty disables)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file (default: stderr, or the user cache dir with -tui)")

	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the resolved worker command and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run preflight checks on the worker command and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return cfg, nil
}

// findConfigPath scans args for -config before the flag set exists.
// Without an explicit flag, WORKER_SHELL_CONFIG is consulted and a
// missing file there is tolerated.
func findConfigPath(args []string) (path string, explicit bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v, true
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return os.Getenv("WORKER_SHELL_CONFIG"), false
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil && !strings.ContainsAny(f.DefValue, "smh") {
		return "int"
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
			return "duration"
		}
	}

	return "string"
}
