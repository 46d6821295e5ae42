// Package lifecycle stops the worker when the main window goes away.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-worker-shell/internal/process"
	"github.com/randomizedcoder/go-worker-shell/internal/supervisor"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

// killByNameTimeout bounds the process-table walk.
const killByNameTimeout = 5 * time.Second

// Config holds configuration for creating a Manager.
type Config struct {
	Slot       *supervisor.Slot
	Terminator process.Terminator
	Logger     *slog.Logger

	// FallbackName is the image name killed when main closes while the
	// launch is still in flight. Empty disables the fallback.
	FallbackName string

	// OnTerminate is called with the method used ("pid", "name" or
	// "none") once the attempt finishes. Optional.
	OnTerminate func(method string)
}

// Manager reacts to window destruction. Only the main window triggers
// termination, and only once.
type Manager struct {
	slot         *supervisor.Slot
	terminator   process.Terminator
	logger       *slog.Logger
	fallbackName string
	onTerminate  func(string)

	once sync.Once
	done chan struct{}
}

// New creates a Manager.
func New(cfg Config) *Manager {
	return &Manager{
		slot:         cfg.Slot,
		terminator:   cfg.Terminator,
		logger:       cfg.Logger,
		fallbackName: cfg.FallbackName,
		onTerminate:  cfg.OnTerminate,
		done:         make(chan struct{}),
	}
}

// FallbackName returns the image name used while a launch is in flight.
func (m *Manager) FallbackName() string {
	return m.fallbackName
}

// WindowDestroyed handles the destruction of the window with label.
// It returns immediately; termination runs in the background.
func (m *Manager) WindowDestroyed(label string) {
	if label != transition.WindowMain {
		m.logger.Debug("window_destroyed", "window", label)
		return
	}

	m.once.Do(func() {
		m.logger.Info("main_window_destroyed")
		go func() {
			defer close(m.done)
			m.terminate()
		}()
	})
}

// Wait blocks until termination finishes or timeout elapses. It returns
// false on timeout or if termination was never triggered.
func (m *Manager) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-m.done:
		return true
	case <-t.C:
		return false
	}
}

func (m *Manager) terminate() {
	method := "none"
	defer func() {
		if m.onTerminate != nil {
			m.onTerminate(method)
		}
	}()

	proc, state := m.slot.Close()
	switch state {
	case supervisor.SlotHeld:
		method = "pid"
		if err := m.terminator.KillProcess(proc); err != nil {
			m.logger.Debug("backend_kill_failed", "pid", proc.Pid, "error", err)
			return
		}
		m.logger.Info("backend_killed", "pid", proc.Pid)

	case supervisor.SlotLaunching:
		// The supervisor kills a worker that starts after Close; the name
		// covers a launch that never reports back.
		if m.fallbackName == "" {
			m.logger.Debug("backend_kill_skipped", "slot", state.String(), "reason", "no fallback name")
			return
		}
		method = "name"
		ctx, cancel := context.WithTimeout(context.Background(), killByNameTimeout)
		defer cancel()

		n, err := m.terminator.KillByName(ctx, m.fallbackName)
		if err != nil {
			m.logger.Debug("backend_kill_failed", "name", m.fallbackName, "error", err)
			return
		}
		m.logger.Info("backend_killed", "name", m.fallbackName, "count", n)

	default:
		// Never started, failed to start or already reaped.
		m.logger.Debug("backend_kill_skipped", "slot", state.String())
	}
}
