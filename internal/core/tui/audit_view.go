package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
)

type severity int

const (
	severityOK severity = iota
	severityNotice
	severityRefused
)

// classify groups audit events by how they render
func classify(event string) severity {
	switch {
	case event == "confirmation-issued", event == "sensitive-content-masked":
		return severityNotice
	case strings.HasSuffix(event, "-blocked"),
		strings.HasSuffix(event, "-cancelled"),
		strings.HasSuffix(event, "-timeout"),
		strings.HasSuffix(event, "-error"),
		event == "rate-limited",
		event == "io-failure",
		event == "confirmation-denied",
		event == "sensitive-data-in-code":
		return severityRefused
	default:
		return severityOK
	}
}

// StyleConfig defines visual styles
type StyleConfig struct {
	TitleColor    lipgloss.Color
	SubtleColor   lipgloss.Color
	ErrorColor    lipgloss.Color
	SuccessColor  lipgloss.Color
	WarningColor  lipgloss.Color
	SelectedColor lipgloss.Color
	BorderColor   lipgloss.Color
}

// DefaultStyleConfig returns the default style configuration
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{
		TitleColor:    lipgloss.Color("10"),  // Green
		SubtleColor:   lipgloss.Color("241"), // Grey
		ErrorColor:    lipgloss.Color("9"),   // Red
		SuccessColor:  lipgloss.Color("10"),  // Green
		WarningColor:  lipgloss.Color("11"),  // Yellow
		SelectedColor: lipgloss.Color("12"),  // Blue
		BorderColor:   lipgloss.Color("8"),   // Dark grey
	}
}

// Styles
var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")).
			MarginTop(1)
)

// View renders the UI
func (m model) View() string {
	if m.showingDetail {
		return m.renderDetail()
	}
	return m.renderList()
}

func (m model) renderList() string {
	visible := m.visible()

	title := fmt.Sprintf(" actionguard audit log (%d records) ", len(m.records))
	if m.refusalsOnly {
		title = fmt.Sprintf(" actionguard audit log (%d of %d records, refusals only) ", len(visible), len(m.records))
	}
	s := titleStyle.Render(title) + "\n\n"

	var content string
	if len(visible) == 0 {
		content = subtleStyle.Render("no audit records") + "\n"
	} else {
		start, end := m.window(len(visible))
		for i := start; i < end; i++ {
			cursor := " "
			if i == m.cursor {
				cursor = ">"
			}
			content += fmt.Sprintf("%s %s\n", cursor, m.renderRecord(visible[i]))
		}
	}
	if m.err != nil {
		content += lipgloss.NewStyle().Foreground(m.styles.ErrorColor).Render("reload failed: "+m.err.Error()) + "\n"
	}
	if m.skipped > 0 {
		content += subtleStyle.Render(fmt.Sprintf("%d malformed lines skipped", m.skipped)) + "\n"
	}

	footer := "\n" + statusBarStyle.Render(m.keys.Help().View()) + "\n"

	// pad so the footer sits at the bottom of the window
	if m.height > 0 {
		padding := m.height - 2 - countLines(content) - countLines(footer)
		if padding > 0 {
			content += strings.Repeat("\n", padding)
		}
	}

	return s + content + footer
}

// window returns the slice of rows that fits the screen around the cursor
func (m model) window(n int) (int, int) {
	rows := n
	if m.height > 0 {
		// title, blank line, footer with border
		rows = max(m.height-8, 1)
	}
	if rows >= n {
		return 0, n
	}
	start := m.cursor - rows/2
	start = max(start, 0)
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

func (m model) renderRecord(r audit.Record) string {
	color := m.styles.SuccessColor
	switch classify(r.Event) {
	case severityRefused:
		color = m.styles.ErrorColor
	case severityNotice:
		color = m.styles.WarningColor
	}

	principal := r.Principal
	if len(principal) > 8 {
		principal = principal[:8]
	}

	event := lipgloss.NewStyle().Foreground(color).Width(26).Render(r.Event)
	line := fmt.Sprintf("%s  %s  %s", r.Timestamp.Local().Format("01-02 15:04:05"), principal, event)
	if summary := summarize(r.Details); summary != "" {
		line += " " + subtleStyle.Render(summary)
	}
	return line
}

// summarize picks the most telling detail of a record
func summarize(details map[string]any) string {
	for _, k := range []string{"path", "reason", "error", "action", "target"} {
		if v, ok := details[k]; ok {
			s := fmt.Sprint(v)
			if len(s) > 60 {
				s = s[:57] + "..."
			}
			return s
		}
	}
	return ""
}

func (m model) renderDetail() string {
	r, ok := m.selected()
	if !ok {
		return subtleStyle.Render("no record selected") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" "+r.Event+" ") + "\n\n")
	fmt.Fprintf(&b, "time       %s\n", r.Timestamp.Local().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&b, "principal  %s\n\n", r.Principal)

	if len(r.Details) > 0 {
		// json.Marshal sorts map keys
		data, err := json.MarshalIndent(r.Details, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(r.Details))
		}
		b.WriteString(lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.styles.BorderColor).
			Padding(0, 1).
			Render(string(data)))
		b.WriteString("\n")
	}
	b.WriteString("\n" + subtleStyle.Render("[enter] back  [q] quit") + "\n")
	return b.String()
}

// countLines counts the number of lines in a string
func countLines(s string) int {
	if s == "" {
		return 0
	}
	count := strings.Count(s, "\n")
	// If string doesn't end with newline, count the last line
	if s[len(s)-1] != '\n' {
		count++
	}
	return count
}
