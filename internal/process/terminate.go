package process

import (
	"context"
	"errors"
	"os"
)

// ErrNoProcess is returned when there is nothing to terminate.
var ErrNoProcess = errors.New("no matching process")

// Terminator kills workers through the host's process facilities.
type Terminator interface {
	// KillProcess forcibly terminates p (and its group, where the host
	// supports it). It returns ErrNoProcess once p has been reaped.
	KillProcess(p *os.Process) error

	// KillByName forcibly terminates every process whose image name is
	// name. It returns the number of processes signalled.
	KillByName(ctx context.Context, name string) (int, error)
}

// HostTerminator is the Terminator for the current operating system.
type HostTerminator struct{}

// NewHostTerminator returns the host's Terminator.
func NewHostTerminator() HostTerminator {
	return HostTerminator{}
}

var _ Terminator = HostTerminator{}
