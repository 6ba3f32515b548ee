package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
)

// RecordsLoadedMsg is sent when the audit log has been (re)read
type RecordsLoadedMsg struct {
	Records []audit.Record
	Skipped int
	Err     error
	// Scheduled marks loads started by the refresh ticker.
	Scheduled bool
}

// TickMsg is sent when an automatic refresh is due
type TickMsg struct{}

// Loader reads the records to display and the number of skipped lines
type Loader func() ([]audit.Record, int, error)

// Model is the interface for the TUI model
type Model interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Model, tea.Cmd)
	View() string
}
