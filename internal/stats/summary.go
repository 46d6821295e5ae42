package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Mode is the runtime mode the shell was built for
	Mode string

	// Command is the worker command line
	Command string

	// Duration is the total shell run time
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// SpawnError is set when the worker never started
	SpawnError string

	// ExitCodes is a map of exit codes to counts (from metrics.Collector)
	ExitCodes map[int]int64

	// ReadErrors is the number of undecodable stdout lines
	ReadErrors int64
}

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// FormatExitSummary formats the startup timeline for display at exit.
func FormatExitSummary(snap TimelineSnapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                           worker-shell Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	if cfg.Mode != "" {
		fmt.Fprintf(&b, "Mode:                   %s\n", cfg.Mode)
	}
	if cfg.Command != "" {
		fmt.Fprintf(&b, "Worker:                 %s\n", cfg.Command)
	}

	if cfg.SpawnError != "" {
		fmt.Fprintf(&b, "\n⚠️  Worker failed to start: %s\n", cfg.SpawnError)
		b.WriteString(renderFooter(cfg))
		return b.String()
	}

	if snap.Ready {
		fmt.Fprintf(&b, "Time to Ready:          %s\n\n", FormatMs(snap.TimeToReady))
	} else {
		b.WriteString("Time to Ready:          never (splash still shown)\n\n")
	}

	if len(snap.Phases) > 0 {
		b.WriteString(ruleLight)
		b.WriteString("                                Startup Phases\n")
		b.WriteString(ruleLight + "\n")

		fmt.Fprintf(&b, "  %-22s %12s %12s\n", "Status", "At", "Lasted")
		b.WriteString("  " + strings.Repeat("─", 48) + "\n")
		for i, p := range snap.Phases {
			lasted := FormatMs(p.Duration)
			if i == len(snap.Phases)-1 {
				lasted = "-"
			}
			fmt.Fprintf(&b, "  %-22s %12s %12s\n", p.Status.String(), FormatMs(p.Offset), lasted)
		}
		b.WriteString("\n")
	}

	b.WriteString(ruleLight)
	b.WriteString("                                 Output Stream\n")
	b.WriteString(ruleLight + "\n")

	fmt.Fprintf(&b, "  Lines:                %s\n", FormatNumber(snap.Lines))
	fmt.Fprintf(&b, "  Unclassified:         %s\n", FormatNumber(snap.UnclassifiedN))
	if snap.ReadyAnnounced > 1 {
		fmt.Fprintf(&b, "  READY announced:      %d times¹\n", snap.ReadyAnnounced)
	}
	if cfg.ReadErrors > 0 {
		fmt.Fprintf(&b, "  Skipped (bad UTF-8):  %d\n", cfg.ReadErrors)
	}
	if snap.Lines > 1 {
		fmt.Fprintf(&b, "  Line interval:        p50 %s  p95 %s  p99 %s  max %s\n",
			FormatMs(snap.IntervalP50),
			FormatMs(snap.IntervalP95),
			FormatMs(snap.IntervalP99),
			FormatMs(snap.IntervalMax),
		)
	}
	b.WriteString("\n")

	if len(cfg.ExitCodes) > 0 {
		b.WriteString("  Exit codes:\n")
		codes := make([]int, 0, len(cfg.ExitCodes))
		for code := range cfg.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "    %4d %-10s %d\n", code, exitCodeLabel(code), cfg.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if snap.ReadyAnnounced > 1 {
		b.WriteString("  ¹ Only the first READY switches to the main surface.\n\n")
	}

	b.WriteString(renderFooter(cfg))
	return b.String()
}

func renderFooter(cfg SummaryConfig) string {
	var b strings.Builder
	b.WriteString(ruleHeavy)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics: http://%s/metrics\n", cfg.MetricsAddr)
		b.WriteString(ruleHeavy)
	}
	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
