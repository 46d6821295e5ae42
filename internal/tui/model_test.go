package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-worker-shell/internal/timeseries"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

// =============================================================================
// Helpers
// =============================================================================

type destroyRecorder struct {
	labels []string
}

func (r *destroyRecorder) record(label string) {
	r.labels = append(r.labels, label)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

type fixedRates timeseries.Rates

func (f fixedRates) Rates() timeseries.Rates {
	return timeseries.Rates(f)
}

func splashUpdate(payload string) EventMsg {
	return EventMsg{Event: transition.EventSplashUpdate, Payload: payload}
}

// =============================================================================
// Tests: New
// =============================================================================

func TestNew(t *testing.T) {
	model := New(Config{
		Mode:        "development",
		Command:     "python rag/rag_api_server.py",
		MetricsAddr: "localhost:9090",
	})

	if model.mode != "development" {
		t.Errorf("mode = %s, want development", model.mode)
	}
	if model.metricsAddr != "localhost:9090" {
		t.Errorf("metricsAddr = %s, want localhost:9090", model.metricsAddr)
	}
	if model.width != 80 || model.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", model.width, model.height)
	}
	if !model.SplashOpen() {
		t.Error("splash should be open initially")
	}
	if model.MainVisible() {
		t.Error("main should be hidden initially")
	}
}

// =============================================================================
// Tests: Init
// =============================================================================

func TestModel_Init(t *testing.T) {
	if cmd := New(Config{}).Init(); cmd == nil {
		t.Error("Init() returned nil cmd")
	}
}

// =============================================================================
// Tests: Update - Key Messages
// =============================================================================

func TestModel_Update_QuitKeys(t *testing.T) {
	tests := []struct {
		key      string
		wantQuit bool
	}{
		{"q", true},
		{"ctrl+c", true},
		{"esc", true},
		{"d", false},
		{"x", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rec := &destroyRecorder{}
			model := New(Config{OnDestroyed: rec.record})
			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)}
			if tt.key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			} else if tt.key == "esc" {
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			}

			m, cmd := update(t, model, msg)

			if m.quitting != tt.wantQuit {
				t.Errorf("quitting = %v, want %v", m.quitting, tt.wantQuit)
			}
			if tt.wantQuit != isQuit(cmd) {
				t.Errorf("quit cmd = %v, want %v", isQuit(cmd), tt.wantQuit)
			}
			if tt.wantQuit && len(rec.labels) == 0 {
				t.Error("quitting should destroy the windows")
			}
		})
	}
}

func TestModel_Quit_DestroysSplashThenMain(t *testing.T) {
	rec := &destroyRecorder{}
	model := New(Config{OnDestroyed: rec.record})

	_, _ = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})

	want := []string{transition.WindowSplash, transition.WindowMain}
	if strings.Join(rec.labels, ",") != strings.Join(want, ",") {
		t.Errorf("destroyed = %v, want %v", rec.labels, want)
	}
}

func TestModel_Quit_AfterReadyDestroysMainOnly(t *testing.T) {
	rec := &destroyRecorder{}
	m := New(Config{OnDestroyed: rec.record})

	m, _ = update(t, m, WindowMsg{Op: OpClose, Label: transition.WindowSplash})
	m, _ = update(t, m, WindowMsg{Op: OpShow, Label: transition.WindowMain})
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	want := []string{transition.WindowSplash, transition.WindowMain}
	if strings.Join(rec.labels, ",") != strings.Join(want, ",") {
		t.Errorf("destroyed = %v, want %v", rec.labels, want)
	}
}

// =============================================================================
// Tests: Update - Window Size
// =============================================================================

func TestModel_Update_WindowSize(t *testing.T) {
	m, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.width != 120 {
		t.Errorf("width = %d, want 120", m.width)
	}
	if m.height != 40 {
		t.Errorf("height = %d, want 40", m.height)
	}
	if m.events.Width != 116 {
		t.Errorf("events width = %d, want 116", m.events.Width)
	}
}

// =============================================================================
// Tests: Update - Tick
// =============================================================================

func TestModel_Update_Tick(t *testing.T) {
	model := New(Config{})
	later := model.startTime.Add(90 * time.Second)

	m, cmd := update(t, model, TickMsg(later))

	if m.Elapsed() != 90*time.Second {
		t.Errorf("Elapsed() = %v, want 90s", m.Elapsed())
	}
	if cmd == nil {
		t.Error("expected tick cmd to be returned")
	}
}

func TestModel_Update_TickPollsRates(t *testing.T) {
	model := New(Config{Rates: fixedRates{Total: 42, PerSec10s: 1.5}})
	m, _ := update(t, model, TickMsg(time.Now()))

	if m.rates.Total != 42 {
		t.Errorf("rates.Total = %d, want 42", m.rates.Total)
	}

	m, _ = update(t, m, WindowMsg{Op: OpShow, Label: transition.WindowMain})
	if !strings.Contains(m.View(), "42 lines") {
		t.Error("main view should show the output rate")
	}
}

// =============================================================================
// Tests: Update - Splash Events
// =============================================================================

func TestModel_SplashUpdates(t *testing.T) {
	tests := []struct {
		payload  string
		progress float64
	}{
		{transition.MsgDownloading, 0.25},
		{transition.MsgExtracting, 0.50},
		{transition.MsgInitializing, 0.75},
	}

	m := New(Config{})
	for _, tt := range tests {
		m, _ = update(t, m, splashUpdate(tt.payload))

		if m.Message() != tt.payload {
			t.Errorf("Message() = %q, want %q", m.Message(), tt.payload)
		}
		if m.Progress() != tt.progress {
			t.Errorf("Progress() = %v, want %v", m.Progress(), tt.progress)
		}
		if !strings.Contains(m.View(), tt.payload) {
			t.Errorf("splash view missing %q", tt.payload)
		}
	}
}

func TestModel_SplashError(t *testing.T) {
	m := New(Config{})
	m, _ = update(t, m, splashUpdate(transition.MsgExtracting))
	m, _ = update(t, m, splashUpdate("Error: exec: \"python\": executable file not found in $PATH"))

	if !m.failed {
		t.Error("failed should be set after an Error: payload")
	}
	if m.Progress() != 0.5 {
		t.Errorf("Progress() = %v, want progress kept at 0.5", m.Progress())
	}
	if !strings.Contains(m.View(), "executable file not found") {
		t.Error("splash view should show the error")
	}
}

func TestModel_OtherEventsOnlyLogged(t *testing.T) {
	m := New(Config{})
	m, _ = update(t, m, EventMsg{Event: "something-else", Payload: "x"})

	if m.Message() != "" {
		t.Errorf("Message() = %q, want empty", m.Message())
	}
	if len(m.Events()) != 1 {
		t.Errorf("Events() = %d entries, want 1", len(m.Events()))
	}
}

// =============================================================================
// Tests: Update - Window Messages
// =============================================================================

func TestModel_SplashToMain(t *testing.T) {
	rec := &destroyRecorder{}
	m := New(Config{Mode: "development", OnDestroyed: rec.record})

	m, _ = update(t, m, WindowMsg{Op: OpClose, Label: transition.WindowSplash})
	if m.SplashOpen() {
		t.Error("splash should be closed")
	}
	if len(rec.labels) != 1 || rec.labels[0] != transition.WindowSplash {
		t.Errorf("destroyed = %v, want [splash]", rec.labels)
	}

	m, _ = update(t, m, WindowMsg{Op: OpShow, Label: transition.WindowMain})
	m, _ = update(t, m, WindowMsg{Op: OpFocus, Label: transition.WindowMain})

	if !m.MainVisible() || !m.MainFocused() {
		t.Error("main should be visible and focused")
	}

	view := m.View()
	if !strings.Contains(view, "worker-shell") {
		t.Error("main view should contain the header")
	}
	if !strings.Contains(view, "development") {
		t.Error("main view should contain the mode")
	}
}

func TestModel_SplashNotReopened(t *testing.T) {
	m := New(Config{})
	m, _ = update(t, m, WindowMsg{Op: OpClose, Label: transition.WindowSplash})
	m, _ = update(t, m, WindowMsg{Op: OpShow, Label: transition.WindowSplash})

	if m.SplashOpen() {
		t.Error("splash should stay closed")
	}
}

func TestModel_FocusHiddenMain(t *testing.T) {
	m := New(Config{})
	m, _ = update(t, m, WindowMsg{Op: OpFocus, Label: transition.WindowMain})

	if m.MainFocused() {
		t.Error("a hidden main surface cannot take focus")
	}
}

func TestModel_CloseMainQuits(t *testing.T) {
	rec := &destroyRecorder{}
	m := New(Config{OnDestroyed: rec.record})
	m, _ = update(t, m, WindowMsg{Op: OpShow, Label: transition.WindowMain})

	m, cmd := update(t, m, WindowMsg{Op: OpClose, Label: transition.WindowMain})

	if !isQuit(cmd) {
		t.Error("closing main should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}

	// A second quit must not destroy main again.
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	count := 0
	for _, l := range rec.labels {
		if l == transition.WindowMain {
			count++
		}
	}
	if count != 1 {
		t.Errorf("main destroyed %d times, want 1", count)
	}
}

// =============================================================================
// Tests: Update - Worker Messages
// =============================================================================

func TestModel_WorkerMessages(t *testing.T) {
	m := New(Config{})

	m, _ = update(t, m, WorkerStartedMsg{PID: 1234})
	if m.worker != WorkerRunning || m.pid != 1234 {
		t.Errorf("worker = %v pid = %d, want running 1234", m.worker, m.pid)
	}

	m, _ = update(t, m, WorkerExitedMsg{Code: 2, Uptime: 3 * time.Second})
	if m.worker != WorkerExited || m.exitCode != 2 {
		t.Errorf("worker = %v code = %d, want exited 2", m.worker, m.exitCode)
	}

	m, _ = update(t, m, WorkerFailedMsg{Err: errors.New("boom")})
	if m.worker != WorkerFailed {
		t.Errorf("worker = %v, want failed", m.worker)
	}

	if n := len(m.Events()); n != 3 {
		t.Errorf("Events() = %d entries, want 3", n)
	}
}

func TestModel_EventLogBounded(t *testing.T) {
	m := New(Config{})
	for i := 0; i < maxEvents+25; i++ {
		m, _ = update(t, m, EventMsg{Event: "tick", Payload: "x"})
	}

	if n := len(m.Events()); n != maxEvents {
		t.Errorf("Events() = %d entries, want %d", n, maxEvents)
	}
}

// =============================================================================
// Tests: View
// =============================================================================

func TestModel_View_Quitting(t *testing.T) {
	m := New(Config{})
	m.quitting = true

	if m.View() != "" {
		t.Error("View() should return empty string when quitting")
	}
}

func TestModel_View_SplashPlaceholder(t *testing.T) {
	view := New(Config{}).View()
	if !strings.Contains(view, "Waiting for the worker") {
		t.Error("splash view should show a placeholder before the first update")
	}
}

// =============================================================================
// Tests: Helpers
// =============================================================================

func TestPhaseProgress(t *testing.T) {
	if _, ok := phaseProgress("something else"); ok {
		t.Error("unknown messages should not move the progress bar")
	}
	if p, ok := phaseProgress(transition.MsgInitializing); !ok || p != 0.75 {
		t.Errorf("phaseProgress(initializing) = %v, %v", p, ok)
	}
}

func TestWindowOp_String(t *testing.T) {
	tests := []struct {
		op   WindowOp
		want string
	}{
		{OpClose, "close"},
		{OpShow, "show"},
		{OpFocus, "focus"},
		{WindowOp(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("WindowOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Second, "00:00:00"},
		{30 * time.Second, "00:00:30"},
		{5*time.Minute + 3*time.Second, "00:05:03"},
		{2*time.Hour + 15*time.Minute, "02:15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Errorf("truncate kept = %q", got)
	}
	if got := truncate(strings.Repeat("a", 30), 12); got != "aaaaaaaaa..." {
		t.Errorf("truncate cut = %q", got)
	}
}
