package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent stderr lines kept for the exit log.
	MaxBufferedLines = 100
)

// StderrHandler drains the worker's stderr.
// It buffers recent lines for the exit log and logs them as they arrive.
// Draining never stops before EOF, so the worker cannot block on a full
// stderr pipe.
type StderrHandler struct {
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewStderrHandler creates a new stderr handler for the worker.
func NewStderrHandler(logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine.
func (h *StderrHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, MaxLineLength), 1024*1024)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		h.logger.Debug("worker_stderr_scan_stopped", "error", err)
		// Keep the pipe drained until the worker closes it.
		_, _ = io.Copy(io.Discard, r)
	}
}

// HandleLine processes a single line of stderr output.
func (h *StderrHandler) HandleLine(line string) {
	// Truncate if too long
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine logs the line at appropriate level based on content.
func (h *StderrHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "worker_stderr", "line", line)
}

// classifyLine determines the log level for a line based on content.
func (h *StderrHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	// Uncaught exceptions and fatal logging
	if strings.Contains(lower, "traceback (most recent call last)") ||
		strings.Contains(lower, "critical") ||
		strings.Contains(lower, "fatal") {
		return slog.LevelError
	}

	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "address already in use") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warning") ||
		strings.HasPrefix(lower, "warn") {
		return slog.LevelWarn
	}

	if strings.HasPrefix(lower, "info") {
		return slog.LevelInfo
	}

	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are common worker failure patterns counted for the exit log.
var ErrorPatterns = []string{
	"Traceback",
	"ModuleNotFoundError",
	"Address already in use",
	"Permission denied",
	"MemoryError",
	"Killed",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *StderrHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)

	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
