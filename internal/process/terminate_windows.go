//go:build windows

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// KillProcess runs taskkill against the worker and its child processes.
// If taskkill fails the worker alone is killed through its handle.
func (HostTerminator) KillProcess(p *os.Process) error {
	if p == nil || p.Pid <= 0 {
		return ErrNoProcess
	}
	tkErr := runTaskkill(context.Background(), "/F", "/T", "/PID", strconv.Itoa(p.Pid))
	if tkErr == nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNoProcess
		}
		return errors.Join(tkErr, err)
	}
	return nil
}

// KillByName runs taskkill by image name. taskkill does not report how
// many processes matched, so success counts as one.
func (HostTerminator) KillByName(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, ErrNoProcess
	}
	if err := runTaskkill(ctx, "/F", "/IM", name); err != nil {
		return 0, err
	}
	return 1, nil
}

func runTaskkill(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "taskkill", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("taskkill %v: %w: %s", args, err, out)
	}
	return nil
}
