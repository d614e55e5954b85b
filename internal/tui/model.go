// Package tui provides a live terminal dashboard for the supervised run.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-proc-sentry/internal/supervisor"
)

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit (sent when supervision ends).
type QuitMsg struct{}

// Source exposes the live watchdogs and a way to request shutdown.
// The orchestrator satisfies this.
type Source interface {
	Watchdogs() []*supervisor.Watchdog
	RequestStop()
}

// Config holds TUI configuration.
type Config struct {
	Source Source
	Target string
	Mode   string
}

// Model represents the TUI state.
type Model struct {
	source Source
	target string
	mode   string

	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		source:     cfg.Source,
		target:     cfg.Target,
		mode:       cfg.Mode,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
		width:      80,
		height:     24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// Stop supervision the same way the interrupt signal would.
			if m.source != nil {
				m.source.RequestStop()
			}
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// tickCmd schedules the next display refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
