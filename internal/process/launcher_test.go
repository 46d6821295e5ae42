package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellPlan(t *testing.T, script string) LaunchPlan {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return LaunchPlan{Executable: sh, Args: []string{"-c", script}, Dir: t.TempDir()}
}

func testLauncher() *Launcher {
	return NewLauncher(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

// =============================================================================
// Launch
// =============================================================================

func TestLauncher_CapturesStdoutAndStderr(t *testing.T) {
	plan := shellPlan(t, `echo "STATUS: READY"; echo "Traceback (most recent call last):" >&2; exit 3`)

	h, err := testLauncher().Launch(plan)
	require.NoError(t, err)
	assert.Positive(t, h.PID)
	assert.Equal(t, "sh", h.Name)

	var lines []string
	scanner := bufio.NewScanner(h.Stdout())
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"STATUS: READY"}, lines)

	info := h.Wait()
	assert.Equal(t, 3, info.Code)
	assert.Error(t, info.Err)
	assert.Equal(t, []string{"Traceback (most recent call last):"}, h.RecentStderr(10))
	assert.Equal(t, 1, h.StderrErrors()["Traceback"])
}

func TestLauncher_RunsInPlanDir(t *testing.T) {
	plan := shellPlan(t, `pwd`)

	h, err := testLauncher().Launch(plan)
	require.NoError(t, err)

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, 0, h.Wait().Code)

	want, err := filepath.EvalSymlinks(plan.Dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLauncher_SpawnFailure(t *testing.T) {
	plan := LaunchPlan{Executable: "definitely-not-a-real-worker-binary", Dir: t.TempDir()}

	h, err := testLauncher().Launch(plan)
	assert.Nil(t, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-worker-binary")
}

func TestLauncher_InvalidDir(t *testing.T) {
	plan := LaunchPlan{Executable: "sh", Dir: "/definitely/not/here"}

	_, err := testLauncher().Launch(plan)
	assert.ErrorIs(t, err, ErrInvalidWorkDir)
}

// =============================================================================
// Termination
// =============================================================================

func TestHostTerminator_KillProcess(t *testing.T) {
	plan := shellPlan(t, `echo started; sleep 30`)

	h, err := testLauncher().Launch(plan)
	require.NoError(t, err)

	// Wait until the child is running before killing it.
	line, err := bufio.NewReader(h.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "started\n", line)

	require.NoError(t, NewHostTerminator().KillProcess(h.Process()))

	done := make(chan ExitInfo, 1)
	go func() { done <- h.Wait() }()

	select {
	case info := <-done:
		assert.Equal(t, 128+9, info.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after KillProcess")
	}
}

// Once reaped, the handle refuses signals so a recycled PID is never hit.
func TestHostTerminator_KillProcessAfterReap(t *testing.T) {
	plan := shellPlan(t, `exit 0`)

	h, err := testLauncher().Launch(plan)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, h.Stdout())
	info := h.Wait()
	require.Equal(t, 0, info.Code)

	assert.ErrorIs(t, NewHostTerminator().KillProcess(h.Process()), ErrNoProcess)
}

func TestHostTerminator_KillProcessNil(t *testing.T) {
	assert.ErrorIs(t, NewHostTerminator().KillProcess(nil), ErrNoProcess)
}

func TestHostTerminator_KillByNameEmpty(t *testing.T) {
	_, err := NewHostTerminator().KillByName(t.Context(), "")
	assert.ErrorIs(t, err, ErrNoProcess)
}

// =============================================================================
// ExtractExitCode
// =============================================================================

func TestExtractExitCode(t *testing.T) {
	assert.Equal(t, 0, ExtractExitCode(nil))
	assert.Equal(t, 1, ExtractExitCode(errors.New("boom")))

	plan := shellPlan(t, `exit 7`)
	err := plan.BuildCommand().Run()
	assert.Equal(t, 7, ExtractExitCode(err))
}
