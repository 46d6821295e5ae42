// Package supervisor runs the backend worker once: launch, read its
// stdout until it closes, then reap it.
package supervisor

// State represents the current state of the supervised worker.
type State int

const (
	// StateCreated is the initial state before the worker has started.
	StateCreated State = iota

	// StateStarting indicates the worker process is being spawned.
	StateStarting

	// StateRunning indicates the worker is running and its stdout is being read.
	StateRunning

	// StateExited indicates the worker ran and has exited.
	StateExited

	// StateFailed indicates the worker could not be spawned.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsActive returns true if a worker process is (about to be) alive.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// IsTerminal returns true if the supervisor will not change state again.
// There is no restart.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateFailed
}
