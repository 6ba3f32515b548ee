// Package tui is a terminal viewer for the audit log.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
)

// model is the Bubble Tea model for the audit viewer
type model struct {
	records       []audit.Record
	skipped       int
	cursor        int
	refusalsOnly  bool
	showingDetail bool
	keys          keyMap
	load          Loader
	refresh       time.Duration
	err           error
	pendingG      bool // Tracks if 'g' was pressed for 'gg' command
	width         int
	height        int
	styles        *StyleConfig
}

// NewModel creates a viewer over records. With a loader and a positive
// refresh interval the viewer reloads the log periodically.
func NewModel(records []audit.Record, load Loader, refresh time.Duration) Model {
	m := model{
		records: records,
		keys:    defaultKeyMap(),
		load:    load,
		refresh: refresh,
		styles:  DefaultStyleConfig(),
	}
	// start on the newest record
	m.cursor = max(len(records)-1, 0)
	return m
}

// Init initializes the model
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.WindowSize()}
	if m.load != nil && m.refresh > 0 {
		cmds = append(cmds, m.tick())
	}
	return tea.Batch(cmds...)
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m model) loadCmd(scheduled bool) tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return func() tea.Msg {
		records, skipped, err := load()
		return RecordsLoadedMsg{Records: records, Skipped: skipped, Err: err, Scheduled: scheduled}
	}
}

// Update handles messages
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		return m, m.loadCmd(true)

	case RecordsLoadedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			atEnd := m.cursor >= len(m.visible())-1
			m.records = msg.Records
			m.skipped = msg.Skipped
			if atEnd {
				// follow new records when already at the newest
				m.cursor = len(m.visible()) - 1
			}
			m.clampCursor()
		}
		if msg.Scheduled && m.refresh > 0 {
			return m, m.tick()
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle quit
	if msg.String() == "q" || msg.String() == "ctrl+c" || msg.Type == tea.KeyEsc {
		return m, tea.Quit
	}

	// Handle detail toggle
	if msg.Type == tea.KeyEnter {
		m.showingDetail = !m.showingDetail
		return m, nil
	}

	count := len(m.visible())

	// Handle navigation
	switch msg.String() {
	case "k", "up":
		m.pendingG = false
		if m.cursor > 0 {
			m.cursor--
		}
	case "j", "down":
		m.pendingG = false
		if m.cursor < count-1 {
			m.cursor++
		}
	case "g":
		// Handle vim-style gg to go to top
		if m.pendingG {
			m.cursor = 0
			m.pendingG = false
		} else {
			m.pendingG = true
		}
	case "G":
		m.pendingG = false
		m.cursor = max(count-1, 0)
	case "f":
		m.pendingG = false
		m.refusalsOnly = !m.refusalsOnly
		m.cursor = len(m.visible()) - 1
		m.clampCursor()
	case "r":
		m.pendingG = false
		return m, m.loadCmd(false)
	default:
		m.pendingG = false
	}

	return m, nil
}

func (m *model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// visible returns the records shown under the current filter
func (m model) visible() []audit.Record {
	if !m.refusalsOnly {
		return m.records
	}
	out := make([]audit.Record, 0, len(m.records))
	for _, r := range m.records {
		if classify(r.Event) == severityRefused {
			out = append(out, r)
		}
	}
	return out
}

// selected returns the record under the cursor
func (m model) selected() (audit.Record, bool) {
	v := m.visible()
	if m.cursor < 0 || m.cursor >= len(v) {
		return audit.Record{}, false
	}
	return v[m.cursor], true
}

// Run opens the viewer full screen and blocks until the user quits
func Run(records []audit.Record, load Loader, refresh time.Duration) error {
	p := tea.NewProgram(NewModel(records, load, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
