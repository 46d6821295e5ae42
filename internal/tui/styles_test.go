package tui

import (
	"strings"
	"testing"
)

// =============================================================================
// Tests: GetWorkerLabel
// =============================================================================

func TestGetWorkerLabel(t *testing.T) {
	tests := []struct {
		name     string
		status   WorkerStatus
		pid      int
		exitCode int
		want     string
	}{
		{"starting", WorkerStarting, 0, 0, "Worker starting"},
		{"running", WorkerRunning, 4242, 0, "pid 4242"},
		{"clean exit", WorkerExited, 0, 0, "Worker exited"},
		{"failed exit", WorkerExited, 0, 3, "code 3"},
		{"spawn failure", WorkerFailed, 0, 0, "failed to start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetWorkerLabel(tt.status, tt.pid, tt.exitCode)
			if !strings.Contains(got, tt.want) {
				t.Errorf("GetWorkerLabel() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: RenderKeyValue
// =============================================================================

func TestRenderKeyValue(t *testing.T) {
	result := RenderKeyValue("Mode", "development")
	if !strings.Contains(result, "Mode:") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "development") {
		t.Error("result should contain value")
	}
}

// =============================================================================
// Tests: RenderProgressBar
// =============================================================================

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		width    int
	}{
		{"0%", 0, 20},
		{"50%", 0.5, 20},
		{"100%", 1.0, 20},
		{"narrow", 0.5, 5},
		{"wide", 0.5, 50},
		{"over 100%", 1.5, 20},
		{"negative", -0.1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderProgressBar(tt.progress, tt.width)
			if result == "" {
				t.Error("RenderProgressBar returned empty string")
			}
			if !strings.Contains(result, "%") {
				t.Error("result should contain percentage")
			}
		})
	}
}

func TestRenderProgressBar_Fill(t *testing.T) {
	result := RenderProgressBar(0.25, 20)
	if got := strings.Count(result, "█"); got != 5 {
		t.Errorf("filled cells = %d, want 5", got)
	}
	if got := strings.Count(result, "░"); got != 15 {
		t.Errorf("empty cells = %d, want 15", got)
	}
}

// =============================================================================
// Tests: repeatChar
// =============================================================================

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		char  rune
		count int
		want  string
	}{
		{'x', 0, ""},
		{'x', 1, "x"},
		{'x', 5, "xxxxx"},
		{'█', 3, "███"},
		{'x', -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := repeatChar(tt.char, tt.count); got != tt.want {
				t.Errorf("repeatChar(%q, %d) = %q, want %q", tt.char, tt.count, got, tt.want)
			}
		})
	}
}
