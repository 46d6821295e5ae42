package tui

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

var (
	_ transition.Notifier      = (*Headless)(nil)
	_ transition.WindowManager = (*Headless)(nil)
)

// Headless stands in for the terminal UI when it is disabled. Splash
// updates are printed as plain lines and window operations are logged.
type Headless struct {
	logger *slog.Logger
	out    io.Writer

	mu         sync.Mutex
	splashOpen bool
	mainShown  bool
}

// NewHeadless creates a headless UI writing progress lines to out.
func NewHeadless(logger *slog.Logger, out io.Writer) *Headless {
	return &Headless{
		logger:     logger,
		out:        out,
		splashOpen: true,
	}
}

// Emit implements transition.Notifier.
func (h *Headless) Emit(event, payload string) error {
	h.logger.Debug("ui_event", "event", event, "payload", payload)

	if event != transition.EventSplashUpdate {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.out, "[splash] %s\n", payload)
	return err
}

// Close implements transition.WindowManager.
func (h *Headless) Close(label string) error {
	h.logger.Debug("ui_window", "op", "close", "label", label)

	h.mu.Lock()
	defer h.mu.Unlock()
	if label == transition.WindowSplash {
		h.splashOpen = false
	}
	return nil
}

// Show implements transition.WindowManager.
func (h *Headless) Show(label string) error {
	h.logger.Debug("ui_window", "op", "show", "label", label)

	h.mu.Lock()
	defer h.mu.Unlock()
	if label != transition.WindowMain || h.mainShown {
		return nil
	}
	h.mainShown = true
	_, err := fmt.Fprintln(h.out, "[main] worker ready")
	return err
}

// Focus implements transition.WindowManager.
func (h *Headless) Focus(label string) error {
	h.logger.Debug("ui_window", "op", "focus", "label", label)
	return nil
}

// SplashOpen reports whether the splash has been closed yet.
func (h *Headless) SplashOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.splashOpen
}

// MainShown reports whether the main surface has been shown.
func (h *Headless) MainShown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mainShown
}
