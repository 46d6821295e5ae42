// Package transition drives the splash-to-main state machine from worker
// statuses.
package transition

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/go-worker-shell/internal/parser"
)

// Event and window identifiers shared with the UI.
const (
	EventSplashUpdate = "splash-update"
	WindowSplash      = "splash"
	WindowMain        = "main"
)

// Progress messages shown on the splash surface.
const (
	MsgDownloading  = "Downloading knowledge base... (this may take a while)"
	MsgExtracting   = "Extracting ancient wisdom..."
	MsgInitializing = "Initializing AI engine..."
)

// UIState is which surface is visible.
type UIState int

const (
	StateSplash UIState = iota
	StateMain
)

// String returns the state name.
func (s UIState) String() string {
	switch s {
	case StateSplash:
		return "splash"
	case StateMain:
		return "main"
	default:
		return "unknown"
	}
}

// Notifier delivers a named event with a text payload to the UI.
// Implementations must not block.
type Notifier interface {
	Emit(event, payload string) error
}

// WindowManager performs window operations by label.
// Implementations must not block.
type WindowManager interface {
	Close(label string) error
	Show(label string) error
	Focus(label string) error
}

// Controller maps statuses to notifications and performs the one-way
// switch from splash to main on the first Ready.
type Controller struct {
	logger   *slog.Logger
	notifier Notifier
	windows  WindowManager

	mu      sync.Mutex
	state   UIState
	onReady func()
}

// NewController creates a controller in StateSplash.
func NewController(logger *slog.Logger, notifier Notifier, windows WindowManager) *Controller {
	return &Controller{
		logger:   logger,
		notifier: notifier,
		windows:  windows,
		state:    StateSplash,
	}
}

// OnReady registers a hook run once, after the switch to main.
// Must be called before statuses arrive.
func (c *Controller) OnReady(fn func()) {
	c.mu.Lock()
	c.onReady = fn
	c.mu.Unlock()
}

// State returns the current UI state.
func (c *Controller) State() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleStatus implements parser.StatusSink.
func (c *Controller) HandleStatus(s parser.Status) {
	switch s {
	case parser.Downloading:
		c.notify(MsgDownloading)
	case parser.Extracting:
		c.notify(MsgExtracting)
	case parser.InitializingEngine:
		c.notify(MsgInitializing)
	case parser.Ready:
		c.ready()
	}
}

// SpawnFailed reports a launch failure on the splash. The state does
// not change.
func (c *Controller) SpawnFailed(err error) {
	c.notify(fmt.Sprintf("Error: %v", err))
}

func (c *Controller) ready() {
	c.mu.Lock()
	if c.state == StateMain {
		c.mu.Unlock()
		c.logger.Debug("backend_ready_repeated")
		return
	}
	c.state = StateMain
	hook := c.onReady
	c.mu.Unlock()

	c.logger.Info("backend_ready")

	c.window("close", WindowSplash, c.windows.Close)
	c.window("show", WindowMain, c.windows.Show)
	c.window("focus", WindowMain, c.windows.Focus)

	if hook != nil {
		hook()
	}
}

func (c *Controller) notify(msg string) {
	c.logger.Info("splash_update", "message", msg)
	if err := c.notifier.Emit(EventSplashUpdate, msg); err != nil {
		c.logger.Debug("notify_failed", "event", EventSplashUpdate, "error", err)
	}
}

func (c *Controller) window(op, label string, fn func(string) error) {
	if err := fn(label); err != nil {
		c.logger.Debug("window_op_failed", "op", op, "window", label, "error", err)
	}
}

var _ parser.StatusSink = (*Controller)(nil)
