package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-worker-shell/internal/logging"
)

// Handle is a running worker. The stdout stream belongs to whoever calls
// Stdout; nothing else may read it.
type Handle struct {
	PID     int
	Name    string
	Plan    LaunchPlan
	Started time.Time

	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *logging.StderrHandler
	stderrDone chan struct{}
}

// ExitInfo describes how the worker ended.
type ExitInfo struct {
	Code   int
	Uptime time.Duration
	Err    error
}

// Process returns the worker's process handle.
func (h *Handle) Process() *os.Process {
	return h.cmd.Process
}

// Stdout returns the worker's standard output stream.
func (h *Handle) Stdout() io.Reader {
	return h.stdout
}

// Wait blocks until stderr is drained and the process has exited.
// Call it only after the stdout read loop has finished.
func (h *Handle) Wait() ExitInfo {
	<-h.stderrDone
	err := h.cmd.Wait()
	return ExitInfo{
		Code:   ExtractExitCode(err),
		Uptime: time.Since(h.Started),
		Err:    err,
	}
}

// RecentStderr returns up to n of the worker's most recent stderr lines.
func (h *Handle) RecentStderr(n int) []string {
	return h.stderr.RecentLines(n)
}

// StderrErrors counts known failure patterns in recent stderr output.
func (h *Handle) StderrErrors() map[string]int {
	return h.stderr.CountErrors()
}

// Launcher spawns workers from a LaunchPlan.
type Launcher struct {
	logger  *slog.Logger
	verbose bool
}

// NewLauncher creates a launcher. verbose forwards every stderr line to
// the log instead of only warnings and errors.
func NewLauncher(logger *slog.Logger, verbose bool) *Launcher {
	return &Launcher{logger: logger, verbose: verbose}
}

// Launch starts the worker with stdout captured and stderr drained into
// the log.
func (l *Launcher) Launch(plan LaunchPlan) (*Handle, error) {
	l.logger.Info("backend_starting",
		"executable", plan.Executable,
		"dir", plan.Dir,
		"args", plan.Args,
	)

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("start %s: %w", plan.ImageName(), err)
	}

	cmd := plan.BuildCommand()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", plan.ImageName(), err)
	}

	h := &Handle{
		PID:        cmd.Process.Pid,
		Name:       plan.ImageName(),
		Plan:       plan,
		Started:    started,
		cmd:        cmd,
		stdout:     stdout,
		stderr:     logging.NewStderrHandler(l.logger.With("pid", cmd.Process.Pid), l.verbose),
		stderrDone: make(chan struct{}),
	}

	go func() {
		defer close(h.stderrDone)
		h.stderr.HandleReader(stderr)
	}()

	l.logger.Info("backend_started", "pid", h.PID, "name", h.Name)

	return h, nil
}

// ExtractExitCode extracts the exit code from a Wait() error.
func ExtractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	// Unknown error, assume exit code 1
	return 1
}
