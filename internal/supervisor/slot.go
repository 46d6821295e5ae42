package supervisor

import (
	"os"
	"sync"
)

// SlotState records how far the worker got.
type SlotState int

const (
	// SlotIdle means no launch has been attempted.
	SlotIdle SlotState = iota
	// SlotLaunching means a launch is in progress and the PID is not known yet.
	SlotLaunching
	// SlotHeld means the worker is running and its process is stored.
	SlotHeld
	// SlotReleased means the worker was reaped.
	SlotReleased
	// SlotFailed means the launch failed; there was never a worker.
	SlotFailed
)

var slotStateNames = map[SlotState]string{
	SlotIdle:      "idle",
	SlotLaunching: "launching",
	SlotHeld:      "held",
	SlotReleased:  "released",
	SlotFailed:    "failed",
}

// String returns the string representation of the slot state.
func (s SlotState) String() string {
	if name, ok := slotStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Slot holds the running worker's process so shutdown can target it.
// Once closed, the slot rejects new processes.
type Slot struct {
	mu     sync.Mutex
	proc   *os.Process
	state  SlotState
	closed bool
}

// NewSlot returns an empty, open slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Launching records that a launch is under way.
func (s *Slot) Launching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SlotIdle {
		s.state = SlotLaunching
	}
}

// Set stores the worker's process. It returns false if the slot was
// already closed, in which case the caller owns the process and must
// stop it.
func (s *Slot) Set(p *os.Process) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.proc = p
	s.state = SlotHeld
	return true
}

// Fail records that the launch failed.
func (s *Slot) Fail() {
	s.mu.Lock()
	s.proc = nil
	s.state = SlotFailed
	s.mu.Unlock()
}

// Release forgets the process once it has been reaped.
func (s *Slot) Release() {
	s.mu.Lock()
	s.proc = nil
	s.state = SlotReleased
	s.mu.Unlock()
}

// Get returns the PID of the running worker, if any.
func (s *Slot) Get() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotHeld || s.proc == nil {
		return 0, false
	}
	return s.proc.Pid, true
}

// State returns the current slot state.
func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close marks the slot closed and returns the process and state held at
// that moment. The process is nil unless the state is SlotHeld.
func (s *Slot) Close() (*os.Process, SlotState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.state != SlotHeld {
		return nil, s.state
	}
	return s.proc, s.state
}
