// Package preflight provides startup validation checks for the worker command.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/randomizedcoder/go-worker-shell/internal/config"
	"github.com/randomizedcoder/go-worker-shell/internal/process"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks against the launch plan.
// Checks never start the worker.
func RunAll(plan process.LaunchPlan, mode config.RuntimeMode) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkWorkDir(plan))
	add(checkExecutable(plan))
	if mode == config.ModeDevelopment {
		add(checkScript(plan))
	}

	return result
}

// checkWorkDir verifies the working directory exists and is readable.
func checkWorkDir(plan process.LaunchPlan) Check {
	if err := plan.Validate(); err != nil {
		return Check{
			Name:    "working_dir",
			Passed:  false,
			Message: err.Error(),
		}
	}
	return Check{
		Name:    "working_dir",
		Passed:  true,
		Message: plan.Dir,
	}
}

// checkExecutable verifies the executable can be found.
func checkExecutable(plan process.LaunchPlan) Check {
	path, err := exec.LookPath(plan.Executable)
	if err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", plan.Executable, err),
		}
	}
	return Check{
		Name:    "executable",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkScript warns when the development script is missing; the
// interpreter reports the real error on launch.
func checkScript(plan process.LaunchPlan) Check {
	if len(plan.Args) == 0 {
		return Check{
			Name:    "worker_script",
			Passed:  true,
			Warning: true,
			Message: "no script argument",
		}
	}

	script := plan.Args[0]
	info, err := os.Stat(script)
	if err != nil || info.IsDir() {
		return Check{
			Name:    "worker_script",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s not found", script),
		}
	}
	return Check{
		Name:    "worker_script",
		Passed:  true,
		Message: script,
	}
}

// PrintResults prints the preflight check results.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "working_dir":
		return "run the shell from the project root (dev) or reinstall the application (packaged)"
	case "executable":
		return "install the interpreter or set -interpreter / -resource"
	default:
		return "see documentation"
	}
}
