package confirm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

func fixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) { return code, nil }
}

func TestBlockingConfirmer_Warning(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Verdict
	}{
		{"yes", "y\n", VerdictApproved},
		{"sim", "sim\n", VerdictApproved},
		{"uppercase YES", "YES\n", VerdictApproved},
		{"no", "n\n", VerdictDenied},
		{"invalid then yes", "maybe\ny\n", VerdictApproved},
		{"eof", "", VerdictDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &strings.Builder{}
			b := NewBlockingConfirmer(strings.NewReader(tt.input), output, 4)

			result, err := b.Confirm(context.Background(), Request{
				Level:  security.LevelWarning,
				Action: "write",
				Target: "/tmp/notes.txt",
				Reason: "write operation requires confirmation",
			})
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if result.Verdict != tt.want {
				t.Errorf("Confirm() = %s, want %s", result.Verdict, tt.want)
			}
			if !strings.Contains(output.String(), "needs your confirmation") {
				t.Error("Expected confirmation prompt in output")
			}
		})
	}
}

func TestBlockingConfirmer_Critical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Verdict
	}{
		{"matching code", "4821\n", VerdictApproved},
		{"matching code with spaces", "  4821 \n", VerdictApproved},
		{"wrong code", "1234\n", VerdictDenied},
		{"yes is not enough", "y\n", VerdictDenied},
		{"eof", "", VerdictDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &strings.Builder{}
			b := NewBlockingConfirmer(strings.NewReader(tt.input), output, 4)
			b.newCode = fixedCode("4821")

			result, err := b.Confirm(context.Background(), Request{Level: security.LevelCritical, Action: "delete"})
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if result.Verdict != tt.want {
				t.Errorf("Confirm() = %s, want %s", result.Verdict, tt.want)
			}
			if !strings.Contains(output.String(), "4821") {
				t.Error("Expected code to be shown")
			}
		})
	}
}

func TestBlockingConfirmer_NoPromptTiers(t *testing.T) {
	output := &strings.Builder{}
	b := NewBlockingConfirmer(strings.NewReader("y\n"), output, 4)

	free, _ := b.Confirm(context.Background(), Request{Level: security.LevelFree})
	if free.Verdict != VerdictApproved {
		t.Errorf("free tier = %s, want approved", free.Verdict)
	}
	blocked, _ := b.Confirm(context.Background(), Request{Level: security.LevelBlocked})
	if blocked.Verdict != VerdictDenied {
		t.Errorf("blocked tier = %s, want denied", blocked.Verdict)
	}
	if output.Len() != 0 {
		t.Errorf("Expected no prompt, got %q", output.String())
	}
}

func TestBlockingConfirmer_NotInteractive(t *testing.T) {
	b := NewBlockingConfirmer(strings.NewReader("y\n"), &strings.Builder{}, 4)
	b.tty = false

	result, err := b.Confirm(context.Background(), Request{Level: security.LevelWarning})
	if !errors.Is(err, ErrNotInteractive) {
		t.Errorf("Confirm() error = %v, want ErrNotInteractive", err)
	}
	if result.Verdict != VerdictDenied {
		t.Errorf("Confirm() = %s, want denied", result.Verdict)
	}
}

func TestBlockingConfirmer_IsBlocking(t *testing.T) {
	var c Confirmer = NewBlockingConfirmer(strings.NewReader(""), &strings.Builder{}, 4)
	if !c.Blocking() {
		t.Error("Expected blocking confirmer to report Blocking() = true")
	}
}
