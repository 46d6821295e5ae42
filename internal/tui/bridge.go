package tui

import (
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

// ErrQueueFull is returned when notifications arrive faster than the
// program reads them.
var ErrQueueFull = errors.New("ui queue full")

// ErrBridgeStopped is returned after Stop.
var ErrBridgeStopped = errors.New("ui bridge stopped")

// DefaultQueueSize is the number of notifications buffered for the program.
const DefaultQueueSize = 256

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

var (
	_ transition.Notifier      = (*Bridge)(nil)
	_ transition.WindowManager = (*Bridge)(nil)
)

// Bridge turns notifications and window operations into program messages.
// Calls never block; messages reach the program in call order. Only
// notifications are bounded: once queueSize of them are pending, Emit
// drops with ErrQueueFull. Window operations and worker events are
// always queued.
type Bridge struct {
	sender Sender
	limit  int

	mu      sync.Mutex
	pending []tea.Msg
	events  int
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// NewBridge starts a bridge feeding sender.
func NewBridge(sender Sender, queueSize int) *Bridge {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bridge{
		sender: sender,
		limit:  queueSize,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *Bridge) pump() {
	defer close(b.done)
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			stopped := b.stopped
			b.mu.Unlock()
			if stopped {
				return
			}
			<-b.wake
			continue
		}
		msg := b.pending[0]
		b.pending[0] = nil
		b.pending = b.pending[1:]
		if _, ok := msg.(EventMsg); ok {
			b.events--
		}
		b.mu.Unlock()

		b.sender.Send(msg)
	}
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) enqueue(msg tea.Msg) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrBridgeStopped
	}
	if _, ok := msg.(EventMsg); ok {
		if b.events >= b.limit {
			b.mu.Unlock()
			return ErrQueueFull
		}
		b.events++
	}
	b.pending = append(b.pending, msg)
	b.mu.Unlock()

	b.signal()
	return nil
}

// Emit implements transition.Notifier.
func (b *Bridge) Emit(event, payload string) error {
	return b.enqueue(EventMsg{Event: event, Payload: payload})
}

// Close implements transition.WindowManager.
func (b *Bridge) Close(label string) error {
	return b.enqueue(WindowMsg{Op: OpClose, Label: label})
}

// Show implements transition.WindowManager.
func (b *Bridge) Show(label string) error {
	return b.enqueue(WindowMsg{Op: OpShow, Label: label})
}

// Focus implements transition.WindowManager.
func (b *Bridge) Focus(label string) error {
	return b.enqueue(WindowMsg{Op: OpFocus, Label: label})
}

// WorkerStarted forwards the worker's PID to the program.
func (b *Bridge) WorkerStarted(pid int) {
	_ = b.enqueue(WorkerStartedMsg{PID: pid})
}

// WorkerExited forwards the worker's exit to the program.
func (b *Bridge) WorkerExited(code int, uptime time.Duration) {
	_ = b.enqueue(WorkerExitedMsg{Code: code, Uptime: uptime})
}

// WorkerFailed forwards a spawn failure to the program.
func (b *Bridge) WorkerFailed(err error) {
	_ = b.enqueue(WorkerFailedMsg{Err: err})
}

// Stop rejects further messages and waits up to timeout for queued ones
// to be delivered. It reports whether the queue drained.
func (b *Bridge) Stop(timeout time.Duration) bool {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.signal()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-b.done:
		return true
	case <-t.C:
		return false
	}
}
