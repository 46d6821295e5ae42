//go:build !windows

package process

import (
	"context"
	"errors"
	"fmt"
	"os"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// KillProcess sends SIGKILL to the worker and then to its process group
// when it leads one. The worker is signalled through its handle first,
// which fails with os.ErrProcessDone after the reap, so a recycled PID
// is never targeted.
func (HostTerminator) KillProcess(p *os.Process) error {
	if p == nil || p.Pid <= 0 {
		return ErrNoProcess
	}

	pgid, pgErr := unix.Getpgid(p.Pid)

	if err := p.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNoProcess
		}
		return fmt.Errorf("kill %d: %w", p.Pid, err)
	}

	// The group id stays reserved while any member is alive.
	if pgErr == nil && pgid == p.Pid {
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("kill process group %d: %w", pgid, err)
		}
	}
	return nil
}

// KillByName walks the process table and kills every process named name,
// except the shell itself.
func (HostTerminator) KillByName(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, ErrNoProcess
	}

	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	self := int32(os.Getpid())
	killed := 0
	var errs []error
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		pname, err := p.NameWithContext(ctx)
		if err != nil || pname != name {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kill %s (%d): %w", name, p.Pid, err))
			continue
		}
		killed++
	}

	if killed == 0 && len(errs) == 0 {
		return 0, ErrNoProcess
	}
	return killed, errors.Join(errs...)
}
