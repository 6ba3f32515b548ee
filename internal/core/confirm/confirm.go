// Package confirm implements tiered human confirmation.
//
// Two delivery modes share the Confirmer interface. BlockingConfirmer
// prompts a single local caller and waits for the answer.
// ChallengeConfirmer issues a single-use Challenge that the caller's
// next inbound message must match, for adapters that cannot block.
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// Errors returned by confirmers
var (
	ErrNoPendingChallenge = errors.New("no pending confirmation")
	ErrNotInteractive     = errors.New("blocking confirmation needs an interactive terminal")
)

// ConfirmWord is the reply a warning-tier challenge expects.
const ConfirmWord = "CONFIRM"

// Verdict is the result of asking for confirmation.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictDenied   Verdict = "denied"
	// VerdictPending means a challenge was issued and the caller must reply later.
	VerdictPending Verdict = "pending"
)

// Request describes the action awaiting confirmation.
type Request struct {
	Principal string
	Level     security.Level
	Action    string
	// Target is a display form of what the action touches. It must already be masked.
	Target string
	Reason string
}

// Result is what a Confirmer decided.
type Result struct {
	Verdict   Verdict
	Challenge *Challenge
}

// Confirmer asks a human to confirm a request.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (Result, error)
	// Blocking reports whether Confirm waits for a human answer.
	Blocking() bool
}

// Challenge is a single-use confirmation token.
type Challenge struct {
	ID        string         `json:"id"`
	Principal string         `json:"-"`
	Level     security.Level `json:"level"`
	Action    string         `json:"action"`
	Prompt    string         `json:"prompt"`
	CreatedAt time.Time      `json:"created_at"`

	expected string
}

// decideWithoutPrompt handles the tiers that never need a human.
func decideWithoutPrompt(level security.Level) (Verdict, bool) {
	switch level {
	case security.LevelFree:
		return VerdictApproved, true
	case security.LevelWarning, security.LevelCritical:
		return "", false
	default:
		return VerdictDenied, true
	}
}
