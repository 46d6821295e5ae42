// Package process resolves, launches and terminates the backend worker.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrInvalidWorkDir is returned when a plan's working directory cannot be used.
var ErrInvalidWorkDir = errors.New("invalid worker working directory")

// LaunchPlan describes how to start the worker. It is built once per run
// by Resolve and never modified afterwards.
type LaunchPlan struct {
	// Executable is a command name looked up in PATH or an absolute path.
	Executable string

	// Args are passed to the executable in order.
	Args []string

	// Dir is the worker's working directory.
	Dir string
}

// Validate checks that Dir exists, is a directory and can be listed.
func (p LaunchPlan) Validate() error {
	if p.Executable == "" {
		return errors.New("empty executable")
	}

	info, err := os.Stat(p.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkDir, p.Dir)
	}

	f, err := os.Open(p.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkDir, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidWorkDir, err)
	}

	return nil
}

// ImageName is the base name of the executable, used for kill-by-name.
func (p LaunchPlan) ImageName() string {
	name := p.Executable
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// BuildCommand returns an unstarted command for the plan.
func (p LaunchPlan) BuildCommand() *exec.Cmd {
	cmd := exec.Command(p.Executable, p.Args...)
	cmd.Dir = p.Dir
	configureSysProcAttr(cmd)
	return cmd
}

// CommandString returns the command that would be executed (for debugging).
func (p LaunchPlan) CommandString() string {
	parts := make([]string, 0, len(p.Args)+1)
	parts = append(parts, quoteArg(p.Executable))
	for _, a := range p.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
