package logs

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

func TestHandler_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "debug", Masker: security.NewScanner()})

	logger.With("who", "teste@email.com").Info("write password=hunter2hunter2",
		"content", "token=abcdefghijklmnopqrstuvwxyz0123",
		"error", errors.New("failed for teste@email.com"),
		slog.Group("nested", "key", "sk-proj-abcdefghijklmnopqrstuvwxyz012345"),
		"count", 3,
	)

	out := buf.String()
	for _, secret := range []string{"hunter2hunter2", "teste@email.com", "abcdefghijklmnopqrstuvwxyz0123", "abcdefghijklmnopqrstuvwxyz012345"} {
		if strings.Contains(out, secret) {
			t.Errorf("Log output contains %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, "count=3") {
		t.Errorf("Expected non-string attributes to pass through: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.name); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestToJournalKey(t *testing.T) {
	if got := toJournalKey("request.id-x"); got != "REQUEST_ID_X" {
		t.Errorf("toJournalKey() = %q", got)
	}
}
