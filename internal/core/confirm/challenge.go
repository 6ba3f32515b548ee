package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// ChallengeConfirmer issues single-use challenges answered by a later message.
// Each principal has at most one pending challenge; issuing a new one
// discards the previous.
type ChallengeConfirmer struct {
	mu      sync.Mutex
	pending map[string]*Challenge
	digits  int
	now     func() time.Time
	newCode func(digits int) (string, error)
}

// NewChallengeConfirmer creates a challenge confirmer using codes of the given length.
func NewChallengeConfirmer(digits int) *ChallengeConfirmer {
	if digits <= 0 {
		digits = DefaultCodeDigits
	}
	if digits > MaxCodeDigits {
		digits = MaxCodeDigits
	}
	return &ChallengeConfirmer{
		pending: make(map[string]*Challenge),
		digits:  digits,
		now:     time.Now,
		newCode: NewCode,
	}
}

func (c *ChallengeConfirmer) Blocking() bool { return false }

// Confirm issues a challenge for warning and critical requests.
func (c *ChallengeConfirmer) Confirm(ctx context.Context, req Request) (Result, error) {
	if verdict, done := decideWithoutPrompt(req.Level); done {
		return Result{Verdict: verdict}, nil
	}

	ch := &Challenge{
		ID:        uuid.New().String(),
		Principal: req.Principal,
		Level:     req.Level,
		Action:    req.Action,
		CreatedAt: c.now(),
	}

	if req.Level == security.LevelCritical {
		code, err := c.newCode(c.digits)
		if err != nil {
			return Result{Verdict: VerdictDenied}, err
		}
		ch.expected = code
		ch.Prompt = fmt.Sprintf("🚨 Critical action: %s %s\n%s\nReply with the code %s to proceed. Any other reply cancels.",
			req.Action, req.Target, req.Reason, code)
	} else {
		ch.expected = ConfirmWord
		ch.Prompt = fmt.Sprintf("⚠️ %s %s\n%s\nReply %s to proceed. Any other reply cancels.",
			req.Action, req.Target, req.Reason, ConfirmWord)
	}

	c.mu.Lock()
	c.pending[req.Principal] = ch
	c.mu.Unlock()

	return Result{Verdict: VerdictPending, Challenge: ch}, nil
}

// Answer consumes the pending challenge of principal whether or not reply
// matches. It returns the consumed challenge and whether the reply matched.
func (c *ChallengeConfirmer) Answer(principal, reply string) (*Challenge, bool, error) {
	c.mu.Lock()
	ch, ok := c.pending[principal]
	if ok {
		delete(c.pending, principal)
	}
	c.mu.Unlock()

	if !ok {
		return nil, false, ErrNoPendingChallenge
	}
	return ch, matches(reply, ch.expected), nil
}

// Pending returns the pending challenge of principal, if any.
func (c *ChallengeConfirmer) Pending(principal string) (*Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[principal]
	return ch, ok
}

// Cancel discards the pending challenge of principal.
func (c *ChallengeConfirmer) Cancel(principal string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[principal]
	delete(c.pending, principal)
	return ok
}

// Expire drops challenges created more than olderThan ago and returns them.
// Nothing calls it implicitly; adapters that own a timeout policy do.
func (c *ChallengeConfirmer) Expire(olderThan time.Duration) []*Challenge {
	cutoff := c.now().Add(-olderThan)
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []*Challenge
	for principal, ch := range c.pending {
		if ch.CreatedAt.Before(cutoff) {
			expired = append(expired, ch)
			delete(c.pending, principal)
		}
	}
	return expired
}
