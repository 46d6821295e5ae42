package supervisor

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-worker-shell/internal/parser"
	"github.com/randomizedcoder/go-worker-shell/internal/process"
)

// recentStderrLines is how much stderr is logged when the worker fails.
const recentStderrLines = 20

// Launcher starts a worker from a plan.
type Launcher interface {
	Launch(plan process.LaunchPlan) (*process.Handle, error)
}

// Reporter receives everything the worker tells the shell.
type Reporter interface {
	parser.StatusSink
	SpawnFailed(err error)
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the supervisor state changes.
	OnStateChange func(oldState, newState State)

	// OnStart is called when the worker process starts.
	OnStart func(pid int)

	// OnExit is called when the worker process exits.
	OnExit func(exitCode int, uptime time.Duration)

	// OnSpawnFailed is called when the worker could not be started.
	OnSpawnFailed func(err error)

	// OnLine is called for every stdout line, classified or not.
	OnLine func(status parser.Status)

	// OnReadError is called for every stdout line that could not be decoded.
	OnReadError func()
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Plan     process.LaunchPlan
	Launcher Launcher
	Reporter Reporter
	Slot     *Slot
	Logger   *slog.Logger

	// Terminator stops a worker that started after shutdown began.
	// Optional.
	Terminator process.Terminator

	Callbacks Callbacks
}

// Supervisor owns the worker for the lifetime of the shell. The stdout
// read loop runs on the goroutine that calls Run.
type Supervisor struct {
	plan       process.LaunchPlan
	launcher   Launcher
	reporter   Reporter
	slot       *Slot
	terminator process.Terminator
	logger     *slog.Logger
	callbacks  Callbacks

	// State management
	state     State
	stateMu   sync.RWMutex
	startTime time.Time

	reader atomic.Pointer[parser.LineReader]
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	slot := cfg.Slot
	if slot == nil {
		slot = NewSlot()
	}
	return &Supervisor{
		plan:       cfg.Plan,
		launcher:   cfg.Launcher,
		reporter:   cfg.Reporter,
		slot:       slot,
		terminator: cfg.Terminator,
		logger:     cfg.Logger,
		callbacks:  cfg.Callbacks,
		state:      StateCreated,
	}
}

// Run launches the worker, forwards its stdout until the stream closes
// and reaps it. A spawn failure is reported and returned; the worker is
// never restarted.
func (s *Supervisor) Run() error {
	if s.State() != StateCreated {
		return errors.New("supervisor already ran")
	}
	s.setState(StateStarting)
	s.slot.Launching()

	h, err := s.launcher.Launch(s.plan)
	if err != nil {
		s.slot.Fail()
		s.logger.Error("backend_start_failed",
			"executable", s.plan.Executable,
			"error", err,
		)
		s.setState(StateFailed)
		if s.callbacks.OnSpawnFailed != nil {
			s.callbacks.OnSpawnFailed(err)
		}
		s.reporter.SpawnFailed(err)
		return err
	}

	if !s.slot.Set(h.Process()) {
		s.logger.Warn("backend_started_during_shutdown", "pid", h.PID)
		if s.terminator != nil {
			if err := s.terminator.KillProcess(h.Process()); err != nil {
				s.logger.Debug("backend_kill_failed", "pid", h.PID, "error", err)
			}
		}
	}

	s.stateMu.Lock()
	s.startTime = h.Started
	s.stateMu.Unlock()
	s.setState(StateRunning)

	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(h.PID)
	}

	statusParser := parser.NewStatusParser(s.logger, s.reporter, s.callbacks.OnLine)
	reader := parser.NewLineReader(h.Stdout(), statusParser, s.callbacks.OnReadError)
	s.reader.Store(reader)

	if err := reader.Run(); err != nil {
		s.logger.Debug("backend_stdout_closed", "pid", h.PID, "error", err)
	}

	info := h.Wait()
	s.slot.Release()

	stats := reader.Stats()
	s.logger.Info("backend_exited",
		"pid", h.PID,
		"exit_code", info.Code,
		"uptime", info.Uptime.String(),
		"lines_read", stats.LinesRead,
		"lines_skipped", stats.LinesSkipped,
		"lines_truncated", stats.LinesTruncated,
		"bytes_read", stats.BytesRead,
	)

	if info.Code != 0 {
		if recent := h.RecentStderr(recentStderrLines); len(recent) > 0 {
			s.logger.Warn("backend_stderr_tail",
				"pid", h.PID,
				"lines", recent,
				"error_patterns", h.StderrErrors(),
			)
		}
	}

	s.setState(StateExited)

	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(info.Code, info.Uptime)
	}

	return nil
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// Uptime returns the current uptime if running, or 0 if not.
func (s *Supervisor) Uptime() time.Duration {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.state != StateRunning {
		return 0
	}
	return time.Since(s.startTime)
}

// ReaderStats returns the stdout reader's counters. Zero before the
// worker starts.
func (s *Supervisor) ReaderStats() parser.ReaderStats {
	if r := s.reader.Load(); r != nil {
		return r.Stats()
	}
	return parser.ReaderStats{}
}

// Slot returns the slot holding the worker's PID.
func (s *Supervisor) Slot() *Slot {
	return s.slot
}
