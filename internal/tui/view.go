package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-proc-sentry/internal/supervisor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	backoffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("go-proc-sentry"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("target=%s mode=%s up=%s", m.target, m.mode, formatUptime(time.Since(m.startTime)))))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-4s %-14s %-8s %-10s %-9s %-7s", "ID", "STATE", "PID", "UPTIME", "FAILURES", "SPAWNS")))
	b.WriteString("\n")

	if m.source != nil {
		for _, wd := range m.source.Watchdogs() {
			b.WriteString(renderWatchdog(wd))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  q: stop supervision and quit"))
	b.WriteString("\n")

	return b.String()
}

// renderWatchdog renders one watchdog row.
func renderWatchdog(wd *supervisor.Watchdog) string {
	state := wd.State()

	pid := "-"
	if p := wd.PID(); p > 0 {
		pid = fmt.Sprintf("%d", p)
	}

	uptime := "-"
	if u := wd.Uptime(); u > 0 {
		uptime = formatUptime(u)
	}

	row := fmt.Sprintf("  %-4d %-14s %-8s %-10s %-9d %-7d",
		wd.ID(), state.String(), pid, uptime, wd.Failures(), wd.Spawns())

	return stateStyle(state).Render(row)
}

// stateStyle picks a row style for the watchdog state.
func stateStyle(s supervisor.State) lipgloss.Style {
	switch s {
	case supervisor.StateRunning:
		return runningStyle
	case supervisor.StateBackoff, supervisor.StateSpawning:
		return backoffStyle
	case supervisor.StateShuttingDown:
		return stoppedStyle
	default:
		return dimStyle
	}
}

// formatUptime formats a duration compactly (e.g. 1h02m03s).
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
