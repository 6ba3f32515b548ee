package confirm

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

func issue(t *testing.T, c *ChallengeConfirmer, principal string, level security.Level) *Challenge {
	t.Helper()
	result, err := c.Confirm(context.Background(), Request{Principal: principal, Level: level, Action: "delete", Target: "/tmp/x"})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if result.Verdict != VerdictPending || result.Challenge == nil {
		t.Fatalf("Confirm() = %+v, want pending challenge", result)
	}
	return result.Challenge
}

func TestChallengeConfirmer_CriticalSingleUse(t *testing.T) {
	c := NewChallengeConfirmer(4)
	c.newCode = fixedCode("7311")

	ch := issue(t, c, "telegram:42", security.LevelCritical)
	if !strings.Contains(ch.Prompt, "7311") {
		t.Errorf("Expected prompt to contain the code, got %q", ch.Prompt)
	}

	got, ok, err := c.Answer("telegram:42", "7311")
	if err != nil || !ok {
		t.Fatalf("Answer() = %v, %v, want match", ok, err)
	}
	if got.ID != ch.ID {
		t.Errorf("Answer() returned challenge %s, want %s", got.ID, ch.ID)
	}

	_, ok, err = c.Answer("telegram:42", "7311")
	if ok || !errors.Is(err, ErrNoPendingChallenge) {
		t.Errorf("Replay = %v, %v, want ErrNoPendingChallenge", ok, err)
	}
}

func TestChallengeConfirmer_MismatchConsumes(t *testing.T) {
	c := NewChallengeConfirmer(4)
	c.newCode = fixedCode("5555")

	issue(t, c, "p", security.LevelCritical)
	if _, ok, err := c.Answer("p", "1111"); ok || err != nil {
		t.Fatalf("Answer(wrong) = %v, %v, want no match and no error", ok, err)
	}
	if _, ok, err := c.Answer("p", "5555"); ok || !errors.Is(err, ErrNoPendingChallenge) {
		t.Errorf("Correct code after a wrong one = %v, %v, want ErrNoPendingChallenge", ok, err)
	}
}

func TestChallengeConfirmer_Warning(t *testing.T) {
	c := NewChallengeConfirmer(4)

	tests := []struct {
		reply string
		want  bool
	}{
		{"CONFIRM", true},
		{"confirm", true},
		{" Confirm ", true},
		{"yes", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			issue(t, c, "p", security.LevelWarning)
			_, ok, err := c.Answer("p", tt.reply)
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Answer(%q) = %v, want %v", tt.reply, ok, tt.want)
			}
		})
	}
}

func TestChallengeConfirmer_NewChallengeReplacesOld(t *testing.T) {
	c := NewChallengeConfirmer(4)
	codes := []string{"1111", "2222"}
	c.newCode = func(int) (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first := issue(t, c, "p", security.LevelCritical)
	second := issue(t, c, "p", security.LevelCritical)
	if first.ID == second.ID {
		t.Fatal("Expected distinct challenge ids")
	}

	if _, ok, _ := c.Answer("p", "1111"); ok {
		t.Error("Expected the discarded challenge's code to fail")
	}
}

func TestChallengeConfirmer_PrincipalsAreIndependent(t *testing.T) {
	c := NewChallengeConfirmer(4)
	issue(t, c, "a", security.LevelWarning)

	if _, _, err := c.Answer("b", "CONFIRM"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Errorf("Answer(b) error = %v, want ErrNoPendingChallenge", err)
	}
	if _, ok := c.Pending("a"); !ok {
		t.Error("Expected a's challenge to remain pending")
	}
}

func TestChallengeConfirmer_NoPromptTiers(t *testing.T) {
	c := NewChallengeConfirmer(4)

	free, _ := c.Confirm(context.Background(), Request{Principal: "p", Level: security.LevelFree})
	if free.Verdict != VerdictApproved || free.Challenge != nil {
		t.Errorf("free tier = %+v", free)
	}
	blocked, _ := c.Confirm(context.Background(), Request{Principal: "p", Level: security.LevelBlocked})
	if blocked.Verdict != VerdictDenied || blocked.Challenge != nil {
		t.Errorf("blocked tier = %+v", blocked)
	}
	if _, ok := c.Pending("p"); ok {
		t.Error("Expected no challenge for free or blocked tiers")
	}
}

func TestChallengeConfirmer_Expire(t *testing.T) {
	c := NewChallengeConfirmer(4)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	issue(t, c, "old", security.LevelWarning)
	now = now.Add(10 * time.Minute)
	issue(t, c, "new", security.LevelWarning)

	expired := c.Expire(5 * time.Minute)
	if len(expired) != 1 || expired[0].Principal != "old" {
		t.Fatalf("Expire() = %v, want only old", expired)
	}
	if _, ok := c.Pending("new"); !ok {
		t.Error("Expected new challenge to survive")
	}
}

func TestNewCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode(4)
		if err != nil {
			t.Fatalf("NewCode() error = %v", err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < 1000 || n > 9999 {
			t.Fatalf("NewCode(4) = %q, want 1000-9999", code)
		}
	}

	if code, _ := NewCode(6); len(code) != 6 {
		t.Errorf("NewCode(6) = %q, want 6 digits", code)
	}
	if code, _ := NewCode(20); len(code) != MaxCodeDigits {
		t.Errorf("NewCode(20) = %q, want %d digits", code, MaxCodeDigits)
	}
}
