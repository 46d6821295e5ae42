// Package main provides the worker-shell CLI entry point.
//
// worker-shell launches a long-running backend worker, shows a splash
// surface while the worker reports its startup progress on stdout, swaps
// to the main surface once the worker is ready and kills the worker when
// the main surface is closed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/randomizedcoder/go-worker-shell/internal/config"
	"github.com/randomizedcoder/go-worker-shell/internal/logging"
	"github.com/randomizedcoder/go-worker-shell/internal/orchestrator"
	"github.com/randomizedcoder/go-worker-shell/internal/preflight"
	"github.com/randomizedcoder/go-worker-shell/internal/process"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/worker-shell
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("worker-shell %s (%s)\n", version, config.BuildMode())
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// With the TUI enabled stderr belongs to the renderer, so logs go to a file.
	var logger *slog.Logger
	if path := cfg.EffectiveLogFile(); path != "" {
		f, err := logging.OpenLogFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logger = logging.NewLoggerTo(f, cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	mode := config.BuildMode()

	// Resolution failure is fatal before anything is started.
	locator := process.NewExecutableDirLocator(cfg.ResourceDir)
	plan, err := process.Resolve(mode, process.ResolverConfigFrom(cfg), locator)
	if err != nil {
		logger.Error("resolve_failed", "mode", mode.String(), "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.PrintCmd {
		printWorkerCommand(mode, plan)
		return 0
	}

	if cfg.Check {
		result := preflight.RunAll(plan, mode)
		preflight.PrintResults(os.Stdout, result)
		if !result.Passed {
			return 1
		}
		return 0
	}

	logger.Info("starting",
		"version", version,
		"mode", mode.String(),
		"command", plan.CommandString(),
		"dir", plan.Dir,
		"tui", cfg.TUIEnabled,
		"metrics_addr", cfg.MetricsAddr,
		"config", cfg.ConfigPath,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg, mode, plan)
	}

	orch := orchestrator.New(cfg, logger, orchestrator.Options{
		Version: version,
		Mode:    mode,
		Plan:    plan,
	})
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		if cfg.TUIEnabled {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config, mode config.RuntimeMode, plan process.LaunchPlan) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          worker-shell                             ║")
	fmt.Println("║          Backend worker launcher with a splash screen             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Mode:        %s\n", mode)
	fmt.Printf("  Worker:      %s\n", plan.CommandString())
	fmt.Printf("  Directory:   %s\n", plan.Dir)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printWorkerCommand prints the command that would be launched.
func printWorkerCommand(mode config.RuntimeMode, plan process.LaunchPlan) {
	fmt.Printf("# Worker command (%s mode):\n", mode)
	fmt.Println()
	fmt.Println(plan.CommandString())
	fmt.Println()
	fmt.Printf("# Working directory: %s\n", plan.Dir)
}
