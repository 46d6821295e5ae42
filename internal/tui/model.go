package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-worker-shell/internal/timeseries"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

// maxEvents bounds the event log on the main surface.
const maxEvents = 200

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// EventMsg carries a named UI event, e.g. a splash-update.
type EventMsg struct {
	Event   string
	Payload string
}

// WindowOp is a window operation.
type WindowOp int

const (
	OpClose WindowOp = iota
	OpShow
	OpFocus
)

// String returns the operation name.
func (op WindowOp) String() string {
	switch op {
	case OpClose:
		return "close"
	case OpShow:
		return "show"
	case OpFocus:
		return "focus"
	default:
		return "unknown"
	}
}

// WindowMsg asks the model to perform a window operation.
type WindowMsg struct {
	Op    WindowOp
	Label string
}

// WorkerStartedMsg reports the worker's PID.
type WorkerStartedMsg struct {
	PID int
}

// WorkerExitedMsg reports the worker's exit.
type WorkerExitedMsg struct {
	Code   int
	Uptime time.Duration
}

// WorkerFailedMsg reports that the worker could not be started.
type WorkerFailedMsg struct {
	Err error
}

// =============================================================================
// Model
// =============================================================================

// Model holds both surfaces. The splash surface is open and the main
// surface hidden until window messages say otherwise.
type Model struct {
	// Configuration
	mode        string
	command     string
	metricsAddr string
	onDestroyed func(label string)
	rateSource  RateSource

	keys    keyMap
	spinner spinner.Model
	events  viewport.Model

	// Splash surface
	splashOpen bool
	message    string
	progress   float64
	failed     bool

	// Main surface
	mainVisible   bool
	mainFocused   bool
	mainDestroyed bool
	readyAt       time.Time
	eventLog      []string

	// Worker
	worker     WorkerStatus
	pid        int
	exitCode   int
	workerUp   time.Time
	workerLife time.Duration
	rates      timeseries.Rates

	startTime time.Time
	now       time.Time

	width  int
	height int

	quitting bool
}

// RateSource provides the worker's output rate.
type RateSource interface {
	Rates() timeseries.Rates
}

// Config holds TUI configuration.
type Config struct {
	Mode        string
	Command     string
	MetricsAddr string

	// Rates is polled on every tick. Optional.
	Rates RateSource

	// OnDestroyed is called with each window label as it is destroyed.
	OnDestroyed func(label string)
}

// New creates a new TUI model.
func New(cfg Config) Model {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)

	now := time.Now()
	return Model{
		mode:        cfg.Mode,
		command:     cfg.Command,
		metricsAddr: cfg.MetricsAddr,
		onDestroyed: cfg.OnDestroyed,
		rateSource:  cfg.Rates,
		keys:        defaultKeyMap(),
		spinner:     sp,
		events:      viewport.New(80, 10),
		splashOpen:  true,
		startTime:   now,
		now:         now,
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.destroyAll()
			m.quitting = true
			return m, tea.Quit
		}
		if m.mainVisible {
			var cmd tea.Cmd
			m.events, cmd = m.events.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeEvents()
		return m, nil

	case TickMsg:
		m.now = time.Time(msg)
		if m.rateSource != nil {
			m.rates = m.rateSource.Rates()
		}
		return m, tickCmd()

	case spinner.TickMsg:
		if !m.splashOpen {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.handleEvent(msg)
		return m, nil

	case WindowMsg:
		return m.handleWindow(msg)

	case WorkerStartedMsg:
		m.worker = WorkerRunning
		m.pid = msg.PID
		m.workerUp = time.Now()
		m.logEvent(fmt.Sprintf("worker started pid=%d", msg.PID))
		return m, nil

	case WorkerExitedMsg:
		m.worker = WorkerExited
		m.exitCode = msg.Code
		m.workerLife = msg.Uptime
		m.logEvent(fmt.Sprintf("worker exited code=%d uptime=%s", msg.Code, formatDuration(msg.Uptime)))
		return m, nil

	case WorkerFailedMsg:
		m.worker = WorkerFailed
		m.logEvent(fmt.Sprintf("worker failed to start: %v", msg.Err))
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.mainVisible {
		return m.renderMainView()
	}
	if m.splashOpen {
		return m.renderSplashView()
	}
	return ""
}

func (m *Model) handleEvent(msg EventMsg) {
	m.logEvent(fmt.Sprintf("%s %q", msg.Event, msg.Payload))

	if msg.Event != transition.EventSplashUpdate {
		return
	}
	m.message = msg.Payload
	if strings.HasPrefix(msg.Payload, "Error:") {
		m.failed = true
		return
	}
	if p, ok := phaseProgress(msg.Payload); ok {
		m.progress = p
	}
}

func (m Model) handleWindow(msg WindowMsg) (tea.Model, tea.Cmd) {
	m.logEvent(fmt.Sprintf("window %s %s", msg.Op, msg.Label))

	switch msg.Label {
	case transition.WindowSplash:
		switch msg.Op {
		case OpClose:
			if m.splashOpen {
				m.splashOpen = false
				m.destroyed(transition.WindowSplash)
			}
		case OpShow, OpFocus:
			// The splash is never reopened once closed.
		}

	case transition.WindowMain:
		switch msg.Op {
		case OpShow:
			if !m.mainVisible {
				m.mainVisible = true
				m.readyAt = time.Now()
			}
		case OpFocus:
			m.mainFocused = m.mainVisible
		case OpClose:
			m.destroyAll()
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// destroyAll destroys every open window, splash first.
func (m *Model) destroyAll() {
	if m.splashOpen {
		m.splashOpen = false
		m.destroyed(transition.WindowSplash)
	}
	if !m.mainDestroyed {
		m.mainDestroyed = true
		m.mainVisible = false
		m.destroyed(transition.WindowMain)
	}
}

func (m *Model) destroyed(label string) {
	if m.onDestroyed != nil {
		m.onDestroyed(label)
	}
}

func (m *Model) logEvent(line string) {
	stamp := time.Now().Format("15:04:05")
	m.eventLog = append(m.eventLog, dimStyle.Render(stamp)+" "+line)
	if len(m.eventLog) > maxEvents {
		m.eventLog = m.eventLog[len(m.eventLog)-maxEvents:]
	}
	m.events.SetContent(strings.Join(m.eventLog, "\n"))
	m.events.GotoBottom()
}

func (m *Model) resizeEvents() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	// header, status block, section title, footer
	h := m.height - 14
	if h < 3 {
		h = 3
	}
	m.events.Width = w
	m.events.Height = h
}

// phaseProgress maps a splash message to the fraction of startup done.
func phaseProgress(message string) (float64, bool) {
	switch message {
	case transition.MsgDownloading:
		return 0.25, true
	case transition.MsgExtracting:
		return 0.50, true
	case transition.MsgInitializing:
		return 0.75, true
	default:
		return 0, false
	}
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after one second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Message returns the latest splash message.
func (m Model) Message() string {
	return m.message
}

// Progress returns the startup progress shown on the splash (0.0 to 1.0).
func (m Model) Progress() float64 {
	return m.progress
}

// SplashOpen reports whether the splash surface is still open.
func (m Model) SplashOpen() bool {
	return m.splashOpen
}

// MainVisible reports whether the main surface is shown.
func (m Model) MainVisible() bool {
	return m.mainVisible
}

// MainFocused reports whether the main surface has focus.
func (m Model) MainFocused() bool {
	return m.mainFocused
}

// Events returns the event log, oldest first.
func (m Model) Events() []string {
	return m.eventLog
}

// Elapsed returns the time since the shell started.
func (m Model) Elapsed() time.Duration {
	return m.now.Sub(m.startTime)
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
