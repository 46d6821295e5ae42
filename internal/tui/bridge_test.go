package tui

import (
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-worker-shell/internal/parser"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
	gate chan struct{}
}

func (s *recordingSender) Send(msg tea.Msg) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *recordingSender) messages() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tea.Msg(nil), s.msgs...)
}

func TestBridge_PreservesOrder(t *testing.T) {
	sender := &recordingSender{}
	b := NewBridge(sender, 0)

	if err := b.Emit(transition.EventSplashUpdate, transition.MsgDownloading); err != nil {
		t.Fatal(err)
	}
	b.WorkerStarted(77)
	_ = b.Close(transition.WindowSplash)
	_ = b.Show(transition.WindowMain)
	_ = b.Focus(transition.WindowMain)
	b.WorkerExited(0, time.Second)
	b.WorkerFailed(errors.New("boom"))

	if !b.Stop(time.Second) {
		t.Fatal("Stop() did not drain the queue")
	}

	got := sender.messages()
	want := []tea.Msg{
		EventMsg{Event: transition.EventSplashUpdate, Payload: transition.MsgDownloading},
		WorkerStartedMsg{PID: 77},
		WindowMsg{Op: OpClose, Label: transition.WindowSplash},
		WindowMsg{Op: OpShow, Label: transition.WindowMain},
		WindowMsg{Op: OpFocus, Label: transition.WindowMain},
		WorkerExitedMsg{Code: 0, Uptime: time.Second},
	}
	if len(got) != len(want)+1 {
		t.Fatalf("got %d messages, want %d", len(got), len(want)+1)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("msg[%d] = %#v, want %#v", i, got[i], want[i])
		}
	}
	if _, ok := got[len(want)].(WorkerFailedMsg); !ok {
		t.Errorf("last msg = %T, want WorkerFailedMsg", got[len(want)])
	}
}

func TestBridge_QueueFull(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	b := NewBridge(sender, 1)

	// One message can sit in the buffer and one in the blocked pump.
	full := 0
	for i := 0; i < 3; i++ {
		if err := b.Emit("e", "p"); errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	if full == 0 {
		t.Error("expected at least one ErrQueueFull")
	}

	close(sender.gate)
	if !b.Stop(time.Second) {
		t.Fatal("Stop() did not drain the queue")
	}
}

func TestBridge_WindowOpsSurviveFullQueue(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	b := NewBridge(sender, 4)

	dropped := 0
	for i := 0; i < 20; i++ {
		if err := b.Emit(transition.EventSplashUpdate, transition.MsgDownloading); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}
	if dropped == 0 {
		t.Fatal("notifications should be dropped once the queue is full")
	}

	if err := b.Close(transition.WindowSplash); err != nil {
		t.Fatalf("Close() with a full queue: %v", err)
	}
	if err := b.Show(transition.WindowMain); err != nil {
		t.Fatalf("Show() with a full queue: %v", err)
	}
	if err := b.Focus(transition.WindowMain); err != nil {
		t.Fatalf("Focus() with a full queue: %v", err)
	}
	b.WorkerExited(0, time.Second)

	close(sender.gate)
	if !b.Stop(time.Second) {
		t.Fatal("Stop() did not drain the queue")
	}

	got := sender.messages()
	if len(got) != 20-dropped+4 {
		t.Fatalf("got %d messages, want %d", len(got), 20-dropped+4)
	}
	tail := got[len(got)-4:]
	want := []tea.Msg{
		WindowMsg{Op: OpClose, Label: transition.WindowSplash},
		WindowMsg{Op: OpShow, Label: transition.WindowMain},
		WindowMsg{Op: OpFocus, Label: transition.WindowMain},
		WorkerExitedMsg{Code: 0, Uptime: time.Second},
	}
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("tail[%d] = %#v, want %#v", i, tail[i], want[i])
		}
	}
}

// A flood of progress lines ahead of the program loop must not cost the
// switch to the main surface.
func TestBridge_ReadyAfterFloodReachesModel(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	b := NewBridge(sender, 8)

	ctrl := transition.NewController(discardLogger(), b, b)
	for i := 0; i < 100; i++ {
		ctrl.HandleStatus(parser.Downloading)
	}
	ctrl.HandleStatus(parser.Ready)

	close(sender.gate)
	if !b.Stop(time.Second) {
		t.Fatal("Stop() did not drain the queue")
	}

	m := New(Config{})
	for _, msg := range sender.messages() {
		m, _ = update(t, m, msg)
	}
	if m.SplashOpen() {
		t.Error("splash should be closed")
	}
	if !m.MainVisible() || !m.MainFocused() {
		t.Errorf("main visible=%v focused=%v, want both", m.MainVisible(), m.MainFocused())
	}
}

func TestBridge_StoppedRejects(t *testing.T) {
	b := NewBridge(&recordingSender{}, 4)
	b.Stop(time.Second)

	if err := b.Emit("e", "p"); !errors.Is(err, ErrBridgeStopped) {
		t.Errorf("Emit after Stop = %v, want ErrBridgeStopped", err)
	}
	if err := b.Show(transition.WindowMain); !errors.Is(err, ErrBridgeStopped) {
		t.Errorf("Show after Stop = %v, want ErrBridgeStopped", err)
	}

	// Stop is idempotent.
	if !b.Stop(time.Second) {
		t.Error("second Stop() should report drained")
	}
}

func TestBridge_StopTimeout(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	defer close(sender.gate)

	b := NewBridge(sender, 4)
	_ = b.Emit("e", "p")

	if b.Stop(20 * time.Millisecond) {
		t.Error("Stop() should time out while the sender is blocked")
	}
}

func TestBridge_DrivesModel(t *testing.T) {
	sender := &recordingSender{}
	b := NewBridge(sender, 0)

	ctrl := transition.NewController(discardLogger(), b, b)
	ctrl.SpawnFailed(errors.New("exec: not found"))
	b.Stop(time.Second)

	m := New(Config{})
	for _, msg := range sender.messages() {
		m, _ = update(t, m, msg)
	}
	if m.Message() != "Error: exec: not found" {
		t.Errorf("Message() = %q", m.Message())
	}
}
