package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
)

func testRecords() []audit.Record {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []audit.Record{
		{Timestamp: base, Principal: "aaaaaaaaaaaaaaaa", Event: "file-read", Details: map[string]any{"path": "/tmp/a.txt"}},
		{Timestamp: base.Add(time.Second), Principal: "aaaaaaaaaaaaaaaa", Event: "rate-limited", Details: map[string]any{"action": "execute"}},
		{Timestamp: base.Add(2 * time.Second), Principal: "bbbbbbbbbbbbbbbb", Event: "confirmation-issued", Details: map[string]any{"action": "delete"}},
		{Timestamp: base.Add(3 * time.Second), Principal: "bbbbbbbbbbbbbbbb", Event: "delete-blocked", Details: map[string]any{"path": "/etc/passwd", "reason": "system location"}},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, keys ...tea.KeyMsg) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(model)
	}
	return m
}

func TestNewModel(t *testing.T) {
	m, ok := NewModel(testRecords(), nil, 0).(model)
	if !ok {
		t.Fatal("Expected model type")
	}

	if len(m.records) != 4 {
		t.Errorf("Expected 4 records, got %d", len(m.records))
	}
	if m.cursor != 3 {
		t.Errorf("Expected cursor on newest record, got %d", m.cursor)
	}
	if m.Init() == nil {
		t.Error("Expected command from Init to get window size")
	}
}

func TestNewModel_Empty(t *testing.T) {
	m := NewModel(nil, nil, 0).(model)
	if m.cursor != 0 {
		t.Errorf("Expected cursor 0, got %d", m.cursor)
	}
	if !strings.Contains(m.View(), "no audit records") {
		t.Error("Expected empty state")
	}
}

func TestModel_Navigation(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want int
	}{
		{"up", []tea.KeyMsg{runes("k")}, 2},
		{"up stops at top", []tea.KeyMsg{runes("k"), runes("k"), runes("k"), runes("k"), runes("k")}, 0},
		{"down stops at bottom", []tea.KeyMsg{runes("j")}, 3},
		{"gg", []tea.KeyMsg{runes("g"), runes("g")}, 0},
		{"single g does nothing", []tea.KeyMsg{runes("g"), runes("k")}, 2},
		{"G", []tea.KeyMsg{runes("g"), runes("g"), runes("G")}, 3},
		{"arrow keys", []tea.KeyMsg{{Type: tea.KeyUp}, {Type: tea.KeyUp}, {Type: tea.KeyDown}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(t, NewModel(testRecords(), nil, 0).(model), tt.keys...)
			if m.cursor != tt.want {
				t.Errorf("Expected cursor %d, got %d", tt.want, m.cursor)
			}
		})
	}
}

func TestModel_FilterRefusals(t *testing.T) {
	m := press(t, NewModel(testRecords(), nil, 0).(model), runes("f"))

	visible := m.visible()
	if len(visible) != 2 {
		t.Fatalf("Expected 2 refusals, got %d", len(visible))
	}
	for _, r := range visible {
		if r.Event != "rate-limited" && r.Event != "delete-blocked" {
			t.Errorf("Unexpected record %s in refusals", r.Event)
		}
	}
	if m.cursor != 1 {
		t.Errorf("Expected cursor on last refusal, got %d", m.cursor)
	}
	if !strings.Contains(m.View(), "refusals only") {
		t.Error("Expected filter to show in title")
	}

	m = press(t, m, runes("f"))
	if len(m.visible()) != 4 {
		t.Errorf("Expected filter toggled off, got %d records", len(m.visible()))
	}
}

func TestModel_Detail(t *testing.T) {
	m := press(t, NewModel(testRecords(), nil, 0).(model), tea.KeyMsg{Type: tea.KeyEnter})

	if !m.showingDetail {
		t.Fatal("Expected detail view")
	}
	view := m.View()
	for _, want := range []string{"delete-blocked", "system location", "/etc/passwd"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected detail to contain %q", want)
		}
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.showingDetail {
		t.Error("Expected enter to return to the list")
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(testRecords(), nil, 0).(model)

	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("Expected quit command for %s", k.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("Expected QuitMsg for %s", k.String())
		}
	}
}

func TestModel_Reload(t *testing.T) {
	calls := 0
	load := func() ([]audit.Record, int, error) {
		calls++
		return append(testRecords(), audit.Record{Event: "code-executed"}), 2, nil
	}
	m := NewModel(testRecords(), load, 0).(model)

	_, cmd := m.Update(runes("r"))
	if cmd == nil {
		t.Fatal("Expected reload command")
	}
	msg, ok := cmd().(RecordsLoadedMsg)
	if !ok {
		t.Fatal("Expected RecordsLoadedMsg")
	}
	if calls != 1 || msg.Scheduled {
		t.Errorf("Expected one manual load, got calls=%d scheduled=%v", calls, msg.Scheduled)
	}

	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd != nil {
		t.Error("Expected manual reload not to schedule a tick")
	}
	if len(m.records) != 5 || m.cursor != 4 {
		t.Errorf("Expected to follow the new record, got %d records cursor %d", len(m.records), m.cursor)
	}
	if !strings.Contains(m.View(), "2 malformed lines skipped") {
		t.Error("Expected skipped line notice")
	}
}

func TestModel_ReloadKeepsPosition(t *testing.T) {
	m := press(t, NewModel(testRecords(), nil, 0).(model), runes("g"), runes("g"))

	next, _ := m.Update(RecordsLoadedMsg{Records: append(testRecords(), audit.Record{Event: "file-read"})})
	m = next.(model)
	if m.cursor != 0 {
		t.Errorf("Expected cursor to stay at 0, got %d", m.cursor)
	}
}

func TestModel_ReloadError(t *testing.T) {
	m := NewModel(testRecords(), nil, time.Second).(model)

	next, cmd := m.Update(RecordsLoadedMsg{Err: errors.New("permission denied"), Scheduled: true})
	m = next.(model)
	if len(m.records) != 4 {
		t.Error("Expected records to survive a failed reload")
	}
	if cmd == nil {
		t.Error("Expected scheduled reload to reschedule")
	}
	if !strings.Contains(m.View(), "reload failed: permission denied") {
		t.Error("Expected error in view")
	}
}

func TestModel_TickLoads(t *testing.T) {
	load := func() ([]audit.Record, int, error) { return nil, 0, nil }
	m := NewModel(nil, load, time.Second).(model)

	_, cmd := m.Update(TickMsg{})
	if cmd == nil {
		t.Fatal("Expected tick to start a load")
	}
	if msg, ok := cmd().(RecordsLoadedMsg); !ok || !msg.Scheduled {
		t.Error("Expected scheduled load message")
	}
}

func TestModel_WindowFollowsCursor(t *testing.T) {
	var records []audit.Record
	for i := 0; i < 100; i++ {
		records = append(records, audit.Record{Event: "file-read", Details: map[string]any{"path": "/tmp/f"}})
	}
	m := NewModel(records, nil, 0).(model)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m = next.(model)

	start, end := m.window(len(records))
	if end != 100 || end-start != 12 {
		t.Errorf("Expected last 12 rows, got %d..%d", start, end)
	}

	m = press(t, m, runes("g"), runes("g"))
	start, end = m.window(len(records))
	if start != 0 || end != 12 {
		t.Errorf("Expected first 12 rows, got %d..%d", start, end)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		event string
		want  severity
	}{
		{"file-read", severityOK},
		{"code-executed", severityOK},
		{"confirmation-issued", severityNotice},
		{"sensitive-content-masked", severityNotice},
		{"read-blocked", severityRefused},
		{"write-cancelled", severityRefused},
		{"execution-timeout", severityRefused},
		{"execution-error", severityRefused},
		{"rate-limited", severityRefused},
		{"sensitive-data-in-code", severityRefused},
		{"confirmation-denied", severityRefused},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			if got := classify(tt.event); got != tt.want {
				t.Errorf("classify(%q) = %d, want %d", tt.event, got, tt.want)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := map[string]int{"": 0, "a": 1, "a\n": 1, "a\nb": 2, "\n\n": 2}
	for in, want := range tests {
		if got := countLines(in); got != want {
			t.Errorf("countLines(%q) = %d, want %d", in, got, want)
		}
	}
}
