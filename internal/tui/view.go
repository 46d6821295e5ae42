package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Splash Surface
// =============================================================================

func (m Model) renderSplashView() string {
	title := titleStyle.Render("Starting up")

	message := m.message
	if message == "" {
		message = "Waiting for the worker..."
	}

	var status string
	if m.failed {
		status = statusError.Render("✗ " + message)
	} else {
		status = m.spinner.View() + " " + valueStyle.Render(message)
	}

	barWidth := m.width / 2
	if barWidth > 40 {
		barWidth = 40
	}

	card := splashStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		status,
		"",
		RenderProgressBar(m.progress, barWidth),
		"",
		dimStyle.Render("Elapsed "+formatDuration(m.Elapsed())+"  │  q: quit"),
	))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
}

// =============================================================================
// Main Surface
// =============================================================================

func (m Model) renderMainView() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		sectionHeaderStyle.Render("Events"),
		m.events.View(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	header := fmt.Sprintf(" worker-shell │ %s │ Elapsed: %s ",
		GetWorkerLabel(m.worker, m.pid, m.exitCode),
		formatDuration(m.Elapsed()),
	)
	return headerStyle.Render(header)
}

func (m Model) renderStatus() string {
	rows := []string{
		RenderKeyValue("Mode", m.mode),
		RenderKeyValue("Command", truncate(m.command, m.width-22)),
	}

	if !m.readyAt.IsZero() {
		rows = append(rows, RenderKeyValue("Ready after", formatDuration(m.readyAt.Sub(m.startTime))))
	}

	switch m.worker {
	case WorkerRunning:
		if !m.workerUp.IsZero() {
			rows = append(rows, RenderKeyValue("Worker uptime", formatDuration(m.now.Sub(m.workerUp))))
		}
	case WorkerExited:
		rows = append(rows, RenderKeyValue("Worker uptime", formatDuration(m.workerLife)))
	}

	if m.rateSource != nil {
		rows = append(rows, RenderKeyValue("Output",
			fmt.Sprintf("%d lines │ %.1f/s (1s) │ %.1f/s (10s) │ %.1f/s (60s)",
				m.rates.Total, m.rates.PerSec1s, m.rates.PerSec10s, m.rates.PerSec60s)))
	}

	if m.metricsAddr != "" {
		rows = append(rows, RenderKeyValue("Metrics", "http://"+m.metricsAddr+"/metrics"))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"↑/↓: scroll events",
	}
	left := dimStyle.Render(strings.Join(shortcuts, " │ "))

	focus := "unfocused"
	if m.mainFocused {
		focus = "focused"
	}
	right := mutedStyle.Render(focus)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if n < 10 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
