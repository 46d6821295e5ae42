// Package orchestrator wires the shell together: it launches the worker,
// drives the UI from its status lines and tears it down when the main
// window goes away.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-worker-shell/internal/config"
	"github.com/randomizedcoder/go-worker-shell/internal/lifecycle"
	"github.com/randomizedcoder/go-worker-shell/internal/metrics"
	"github.com/randomizedcoder/go-worker-shell/internal/parser"
	"github.com/randomizedcoder/go-worker-shell/internal/preflight"
	"github.com/randomizedcoder/go-worker-shell/internal/process"
	"github.com/randomizedcoder/go-worker-shell/internal/stats"
	"github.com/randomizedcoder/go-worker-shell/internal/supervisor"
	"github.com/randomizedcoder/go-worker-shell/internal/timeseries"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
	"github.com/randomizedcoder/go-worker-shell/internal/tui"
)

// ErrWorkerNotStarted is returned by Run when the worker could not be spawned.
var ErrWorkerNotStarted = errors.New("worker never started")

// Options carries what the orchestrator needs beyond the config.
type Options struct {
	Version string
	Mode    config.RuntimeMode
	Plan    process.LaunchPlan

	// Launcher defaults to process.NewLauncher.
	Launcher supervisor.Launcher

	// Terminator defaults to the host terminator.
	Terminator process.Terminator

	// Stdout receives headless progress lines and the exit summary.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Orchestrator coordinates all components for one run of the shell.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	mode    config.RuntimeMode
	plan    process.LaunchPlan
	version string
	stdout  io.Writer

	launcher   supervisor.Launcher
	terminator process.Terminator

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	timeline      *stats.Timeline
	rates         *timeseries.RateTracker
	slot          *supervisor.Slot
	lifecycle     *lifecycle.Manager

	mu         sync.Mutex
	controller *transition.Controller
	supervisor *supervisor.Supervisor
	spawnErr   error
	bridge     *tui.Bridge

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Orchestrator {
	launcher := opts.Launcher
	if launcher == nil {
		launcher = process.NewLauncher(logger, cfg.Verbose)
	}
	terminator := opts.Terminator
	if terminator == nil {
		terminator = process.NewHostTerminator()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version: opts.Version,
		Mode:    opts.Mode.String(),
	}, registry)

	o := &Orchestrator{
		config:     cfg,
		logger:     logger,
		mode:       opts.Mode,
		plan:       opts.Plan,
		version:    opts.Version,
		stdout:     stdout,
		launcher:   launcher,
		terminator: terminator,
		registry:   registry,
		metrics:    collector,
		timeline:   stats.NewTimeline(),
		rates:      timeseries.NewRateTracker(),
		slot:       supervisor.NewSlot(),
	}

	// Only the packaged resource has a name unique to this shell; an
	// interpreter name would match unrelated processes.
	var fallback string
	if cfg.KillByName && opts.Mode == config.ModePackaged {
		fallback = opts.Plan.ImageName()
	}
	o.lifecycle = lifecycle.New(lifecycle.Config{
		Slot:         o.slot,
		Terminator:   terminator,
		Logger:       logger,
		FallbackName: fallback,
		OnTerminate:  collector.RecordTermination,
	})

	return o
}

// Run starts the worker and the UI and blocks until the main window is
// destroyed or ctx is cancelled (SIGINT and SIGTERM cancel it too).
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	o.runPreflight()

	if o.config.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(o.config.MetricsAddr, o.registry, o.logger)
		o.metricsServer.AddReadinessCheck("ui_main", o.readyCheck)
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopSampling := make(chan struct{})
	go o.rates.Run(time.Second, stopSampling)
	defer close(stopSampling)

	var uiErr error
	if o.config.TUIEnabled {
		uiErr = o.runTUI(ctx)
	} else {
		o.runHeadless(ctx)
	}

	o.shutdown()

	if uiErr != nil {
		return fmt.Errorf("ui: %w", uiErr)
	}
	if err := o.SpawnError(); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkerNotStarted, err)
	}
	return nil
}

// runTUI runs the terminal program until it quits.
func (o *Orchestrator) runTUI(ctx context.Context) error {
	model := tui.New(tui.Config{
		Mode:        o.mode.String(),
		Command:     o.plan.CommandString(),
		MetricsAddr: o.metricsAddr(),
		Rates:       o.rates,
		OnDestroyed: o.lifecycle.WindowDestroyed,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	bridge := tui.NewBridge(program, tui.DefaultQueueSize)
	o.mu.Lock()
	o.bridge = bridge
	o.mu.Unlock()

	supDone := o.startWorker(bridge, bridge)

	uiDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			o.logger.Info("shutdown_requested", "reason", context.Cause(ctx))
			if err := bridge.Close(transition.WindowMain); err != nil {
				program.Quit()
			}
		case <-uiDone:
		}
	}()

	_, err := program.Run()
	close(uiDone)

	if !bridge.Stop(100 * time.Millisecond) {
		o.logger.Debug("ui_queue_not_drained")
	}
	o.waitWorker(supDone)
	return err
}

// runHeadless prints splash updates as lines and waits for a signal.
func (o *Orchestrator) runHeadless(ctx context.Context) {
	ui := tui.NewHeadless(o.logger, o.stdout)
	supDone := o.startWorker(ui, ui)

	<-ctx.Done()
	o.logger.Info("shutdown_requested", "reason", context.Cause(ctx))

	o.waitWorker(supDone)
}

// startWorker builds the controller and supervisor and runs the
// supervisor on its own goroutine. The returned channel closes when it
// returns.
func (o *Orchestrator) startWorker(notifier transition.Notifier, windows transition.WindowManager) <-chan struct{} {
	controller := transition.NewController(o.logger, o.metrics.CountingNotifier(notifier), windows)
	controller.OnReady(func() {
		o.metrics.RecordReady()
		o.timeline.MarkReady()
	})

	sup := supervisor.New(supervisor.Config{
		Plan:       o.plan,
		Launcher:   o.launcher,
		Reporter:   controller,
		Slot:       o.slot,
		Logger:     o.logger,
		Terminator: o.terminator,
		Callbacks: supervisor.Callbacks{
			OnStateChange: o.onStateChange,
			OnStart:       o.onStart,
			OnExit:        o.onExit,
			OnSpawnFailed: o.onSpawnFailed,
			OnLine:        o.onLine,
			OnReadError:   o.metrics.RecordReadError,
		},
	})

	o.mu.Lock()
	o.controller = controller
	o.supervisor = sup
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sup.Run()
	}()
	return done
}

// waitWorker destroys the main window if the UI has not already done so,
// then gives the lifecycle manager and the supervisor ShutdownTimeout to
// finish.
func (o *Orchestrator) waitWorker(supDone <-chan struct{}) {
	o.lifecycle.WindowDestroyed(transition.WindowMain)

	ctx, cancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
	defer cancel()

	if !o.lifecycle.Wait(o.config.ShutdownTimeout) {
		o.logger.Warn("termination_timeout", "timeout", o.config.ShutdownTimeout.String())
	}

	select {
	case <-supDone:
		o.logger.Info("backend_stopped")
	case <-ctx.Done():
		o.logger.Warn("shutdown_incomplete", "error", ctx.Err())
	}
}

// shutdown stops the metrics server and reports the run.
func (o *Orchestrator) shutdown() {
	if o.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	snap := o.timeline.Snapshot()
	o.logger.Info("startup_timeline",
		"ready", snap.Ready,
		"time_to_ready", snap.TimeToReady.String(),
		"lines", snap.Lines,
		"interval_p50", snap.IntervalP50.String(),
		"interval_p99", snap.IntervalP99.String(),
		"unclassified", snap.UnclassifiedN,
		"lines_per_sec", o.rates.Rates().PerSecOverall,
	)

	if !o.config.TUIEnabled {
		o.printExitSummary(snap)
	}
}

func (o *Orchestrator) printExitSummary(snap stats.TimelineSnapshot) {
	summary := o.metrics.GenerateSummary()

	var spawnErr string
	if err := o.SpawnError(); err != nil {
		spawnErr = err.Error()
	}

	var readErrors int64
	if sup := o.Supervisor(); sup != nil {
		readErrors = sup.ReaderStats().LinesSkipped
	}

	fmt.Fprint(o.stdout, stats.FormatExitSummary(snap, stats.SummaryConfig{
		Mode:        o.mode.String(),
		Command:     o.plan.CommandString(),
		Duration:    time.Since(o.startTime),
		MetricsAddr: o.metricsAddr(),
		SpawnError:  spawnErr,
		ExitCodes:   summary.ExitCodes,
		ReadErrors:  readErrors,
	}))
}

// runPreflight logs the preflight checks. Failures are never fatal here;
// the launch itself reports them to the UI.
func (o *Orchestrator) runPreflight() {
	result := preflight.RunAll(o.plan, o.mode)
	for _, c := range result.Checks {
		switch {
		case c.Passed:
			o.logger.Debug("preflight_check", "name", c.Name, "message", c.Message)
		default:
			o.logger.Warn("preflight_check", "name", c.Name, "message", c.Message, "warning", c.Warning)
		}
	}
}

func (o *Orchestrator) readyCheck() error {
	if o.UIState() != transition.StateMain {
		return errors.New("worker not ready")
	}
	return nil
}

func (o *Orchestrator) metricsAddr() string {
	if o.metricsServer != nil {
		return o.metricsServer.Addr()
	}
	return ""
}

// =============================================================================
// Callback handlers
// =============================================================================

func (o *Orchestrator) onStateChange(oldState, newState supervisor.State) {
	o.logger.Debug("backend_state_change", "from", oldState.String(), "to", newState.String())
}

func (o *Orchestrator) onStart(pid int) {
	o.metrics.WorkerStarted()
	o.timeline.WorkerStarted()
	if b := o.tuiBridge(); b != nil {
		b.WorkerStarted(pid)
	}
}

func (o *Orchestrator) onExit(exitCode int, uptime time.Duration) {
	o.metrics.WorkerExited(exitCode, uptime)
	if b := o.tuiBridge(); b != nil {
		b.WorkerExited(exitCode, uptime)
	}
}

func (o *Orchestrator) onSpawnFailed(err error) {
	o.metrics.SpawnFailed()

	o.mu.Lock()
	o.spawnErr = err
	o.mu.Unlock()

	if b := o.tuiBridge(); b != nil {
		b.WorkerFailed(err)
	}
}

func (o *Orchestrator) onLine(s parser.Status) {
	o.metrics.RecordLine(s)
	o.timeline.ObserveLine(s)
	o.rates.Add(1)
}

func (o *Orchestrator) tuiBridge() *tui.Bridge {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bridge
}

// =============================================================================
// Accessors
// =============================================================================

// UIState returns the visible surface.
func (o *Orchestrator) UIState() transition.UIState {
	o.mu.Lock()
	c := o.controller
	o.mu.Unlock()
	if c == nil {
		return transition.StateSplash
	}
	return c.State()
}

// SpawnError returns the launch error, if the worker failed to start.
func (o *Orchestrator) SpawnError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spawnErr
}

// Supervisor returns the worker's supervisor once Run has started it.
func (o *Orchestrator) Supervisor() *supervisor.Supervisor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.supervisor
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Timeline returns the startup timeline.
func (o *Orchestrator) Timeline() *stats.Timeline {
	return o.timeline
}

// Registry returns the Prometheus registry the collector is registered on.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}
