// Package guard composes path policy, content scanning, rate limiting,
// confirmation, sandboxed execution and auditing into one façade.
//
// Every request runs its gates in a fixed order: rate limit, classification,
// confirmation, screening (execute only), effect, audit. The effect is only
// attempted after every earlier gate passes, and every request returns an
// Outcome rather than an error.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/ratelimit"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/sandbox"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// DefaultMaxReadBytes caps file reads.
const DefaultMaxReadBytes = 1 << 20

// Auditor records guard decisions.
type Auditor interface {
	Append(ctx context.Context, principal, event string, details map[string]any) error
}

// Deps are the components a Guard composes. Security, ExecLimiter and
// Sandbox are required.
type Deps struct {
	Security    *security.SecurityController
	ExecLimiter *ratelimit.Limiter
	// FileLimiter bounds file operations; nil disables file rate limiting.
	FileLimiter *ratelimit.Limiter
	// Blocking prompts a local caller. Nil means every confirmation is a challenge.
	Blocking   confirm.Confirmer
	Challenges *confirm.ChallengeConfirmer
	Sandbox    *sandbox.Sandbox
	Audit      Auditor
	Logger     *slog.Logger
}

// Options tune guard behaviour.
type Options struct {
	MaxReadBytes int64
	ExecTimeout  time.Duration
	// AsyncOnly forces challenge confirmation for every caller. Servers
	// handling many principals must set it.
	AsyncOnly bool
}

// RequestOptions are caller hints for a single request.
type RequestOptions struct {
	// SkipConfirmation waives warning-tier confirmation only. Critical and
	// blocked tiers are never waived.
	SkipConfirmation bool
	// ChannelIsAsync selects challenge confirmation for this request.
	ChannelIsAsync bool
	// Timeout overrides the execution timeout.
	Timeout time.Duration
}

// Guard decides whether side-effecting actions may proceed.
type Guard struct {
	security    *security.SecurityController
	scanner     *security.Scanner
	execLimiter *ratelimit.Limiter
	fileLimiter *ratelimit.Limiter
	blocking    confirm.Confirmer
	challenges  *confirm.ChallengeConfirmer
	sandbox     *sandbox.Sandbox
	audit       Auditor
	logger      *slog.Logger
	opts        Options

	mu      sync.Mutex
	pending map[string]*pendingAction
}

// pendingAction is an action parked behind a challenge.
type pendingAction struct {
	challengeID string
	requestID   string
	action      Action
	level       security.Level
	requested   string
	path        string
	content     string
	code        string
	opts        RequestOptions
}

// New creates a guard.
func New(deps Deps, opts Options) (*Guard, error) {
	if deps.Security == nil || deps.ExecLimiter == nil || deps.Sandbox == nil {
		return nil, errors.New("guard: security, exec limiter and sandbox are required")
	}
	if opts.AsyncOnly && deps.Blocking != nil && deps.Blocking.Blocking() {
		return nil, errors.New("guard: async-only guard cannot use a blocking confirmer")
	}
	if deps.Challenges == nil {
		deps.Challenges = confirm.NewChallengeConfirmer(confirm.DefaultCodeDigits)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.MaxReadBytes <= 0 {
		opts.MaxReadBytes = DefaultMaxReadBytes
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = sandbox.DefaultTimeout
	}
	return &Guard{
		security:    deps.Security,
		scanner:     deps.Security.Scanner(),
		execLimiter: deps.ExecLimiter,
		fileLimiter: deps.FileLimiter,
		blocking:    deps.Blocking,
		challenges:  deps.Challenges,
		sandbox:     deps.Sandbox,
		audit:       deps.Audit,
		logger:      deps.Logger,
		opts:        opts,
		pending:     make(map[string]*pendingAction),
	}, nil
}

// PrincipalFor builds the principal identity of a channel-local user id.
func PrincipalFor(channel, id string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "unknown"
	}
	return channel + ":" + strings.TrimSpace(id)
}

// Remaining returns the executions principal may still run in the current window.
func (g *Guard) Remaining(principal string) int {
	return g.execLimiter.Remaining(principal)
}

// ResetAt returns when principal's execution quota next frees up.
func (g *Guard) ResetAt(principal string) time.Time {
	return g.execLimiter.ResetAt(principal)
}

// Scanner returns the scanner used for masking.
func (g *Guard) Scanner() *security.Scanner {
	return g.scanner
}

func newOutcome(action Action) Outcome {
	return Outcome{ID: uuid.New().String(), Action: action}
}

func (g *Guard) fail(o Outcome, kind FailureKind, reason, remediation string) Outcome {
	o.OK = false
	o.Failure = &Failure{
		Kind:        kind,
		Reason:      g.scanner.Mask(reason),
		Remediation: remediation,
	}
	return o
}

func (g *Guard) succeed(o Outcome, p *Payload) Outcome {
	o.OK = true
	o.Payload = p
	return o
}

// record writes an audit entry. A failed write is logged and counted but
// does not change the outcome of an action whose effect already happened.
func (g *Guard) record(ctx context.Context, principal, event string, details map[string]any) {
	if g.audit == nil {
		return
	}
	// The effect may already have happened, so a cancelled caller must
	// not suppress its record.
	if err := g.audit.Append(context.WithoutCancel(ctx), principal, event, details); err != nil {
		auditFailuresTotal.Inc()
		g.logger.Error("audit append failed", "event", event, "error", err)
	}
}

// guarded runs fn, turning a panic into an InternalError outcome, and
// observes the final outcome.
func (g *Guard) guarded(ctx context.Context, principal string, action Action, fn func(Outcome) Outcome) (out Outcome) {
	o := newOutcome(action)
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("guard panic", "action", action, "panic", r, "stack", string(debug.Stack()))
			g.record(ctx, principal, EventInternalError, map[string]any{"action": string(action), "request_id": o.ID})
			out = g.fail(o, InternalError, "internal error while handling the request", "")
		}
		observeOutcome(out)
	}()
	return fn(o)
}

// rateLimited refuses early when principal's quota is already used up,
// before the caller is asked to confirm anything.
func (g *Guard) rateLimited(ctx context.Context, o Outcome, principal string, limiter *ratelimit.Limiter) (Outcome, bool) {
	if limiter == nil || !limiter.IsLimited(principal) {
		return o, false
	}
	return g.limitRefusal(ctx, o, principal, limiter), true
}

// reserve counts one event against principal's quota right before the
// effect. Check and count are atomic, so concurrent requests cannot all
// slip under the cap.
func (g *Guard) reserve(ctx context.Context, o Outcome, principal string, limiter *ratelimit.Limiter) (Outcome, bool) {
	if limiter == nil {
		return o, true
	}
	ok, err := limiter.Allow(ctx, principal)
	if err != nil {
		g.logger.Warn("rate limiter snapshot not saved", "error", err)
	}
	if !ok {
		return g.limitRefusal(ctx, o, principal, limiter), false
	}
	return o, true
}

func (g *Guard) limitRefusal(ctx context.Context, o Outcome, principal string, limiter *ratelimit.Limiter) Outcome {
	reset := limiter.ResetAt(principal)
	g.record(ctx, principal, EventRateLimited, map[string]any{
		"action":   string(o.Action),
		"reset_at": reset.UTC().Format(time.RFC3339),
	})
	o = g.fail(o, RateLimited,
		fmt.Sprintf("limit of %d %s requests per %s reached", limiter.Max(), o.Action, limiter.Window()),
		fmt.Sprintf("0 of %d remaining; try again after %s", limiter.Max(), reset.Local().Format("15:04:05")),
	)
	resetUTC := reset.UTC()
	o.Failure.ResetAt = &resetUTC
	return o
}

type confirmation int

const (
	confirmed confirmation = iota
	denied
	challenged
)

// confirmAction runs the confirmation gate. On challenged the action is
// parked and the returned outcome carries the challenge.
func (g *Guard) confirmAction(ctx context.Context, o Outcome, principal string, pa *pendingAction, reason string) (Outcome, confirmation) {
	level := pa.level
	if level == security.LevelFree {
		return o, confirmed
	}
	if level == security.LevelWarning && pa.opts.SkipConfirmation {
		return o, confirmed
	}

	req := confirm.Request{
		Principal: principal,
		Level:     level,
		Action:    string(pa.action),
		Target:    g.displayTarget(pa),
		Reason:    g.scanner.Mask(reason),
	}

	confirmer := g.confirmerFor(pa.opts)
	result, err := confirmer.Confirm(ctx, req)
	if err != nil {
		if errors.Is(err, confirm.ErrNotInteractive) {
			return g.fail(o, ConfirmationDenied, err.Error(),
				"run from an interactive terminal or use challenge mode"), denied
		}
		g.logger.Error("confirmation failed", "action", pa.action, "error", err)
		return g.fail(o, InternalError, "confirmation could not be completed", ""), denied
	}

	switch result.Verdict {
	case confirm.VerdictApproved:
		return o, confirmed
	case confirm.VerdictPending:
		pa.challengeID = result.Challenge.ID
		pa.requestID = o.ID
		g.park(principal, pa)
		g.record(ctx, principal, EventConfirmationIssued, map[string]any{
			"action":       string(pa.action),
			"level":        string(level),
			"challenge_id": result.Challenge.ID,
		})
		o.Challenge = result.Challenge
		return g.fail(o, ConfirmationRequired,
			fmt.Sprintf("%s requires %s confirmation", pa.action, level),
			result.Challenge.Prompt,
		), challenged
	default:
		g.record(ctx, principal, cancelledEvent(pa.action), map[string]any{
			"level":  string(level),
			"target": g.displayTarget(pa),
		})
		return g.fail(o, ConfirmationDenied, fmt.Sprintf("%s was not confirmed", pa.action), ""), denied
	}
}

func (g *Guard) confirmerFor(opts RequestOptions) confirm.Confirmer {
	if g.opts.AsyncOnly || opts.ChannelIsAsync || g.blocking == nil {
		return g.challenges
	}
	return g.blocking
}

func (g *Guard) displayTarget(pa *pendingAction) string {
	if pa.action == ActionExecute {
		code := pa.code
		if r := []rune(code); len(r) > 120 {
			code = string(r[:120]) + "…"
		}
		return g.scanner.Mask(code)
	}
	return g.scanner.Mask(pa.path)
}

func (g *Guard) park(principal string, pa *pendingAction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[principal] = pa
	pendingChallenges.Set(float64(len(g.pending)))
}

func (g *Guard) unpark(principal string) *pendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	pa := g.pending[principal]
	delete(g.pending, principal)
	pendingChallenges.Set(float64(len(g.pending)))
	return pa
}

// HasPending reports whether principal has an action waiting for a reply.
func (g *Guard) HasPending(principal string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[principal]
	return ok
}

// ExpirePending cancels challenges older than olderThan and drops their
// parked actions. The guard never calls it; adapters with a timeout policy do.
func (g *Guard) ExpirePending(ctx context.Context, olderThan time.Duration) int {
	expired := g.challenges.Expire(olderThan)
	for _, ch := range expired {
		if pa := g.unpark(ch.Principal); pa != nil {
			g.record(ctx, ch.Principal, cancelledEvent(pa.action), map[string]any{
				"reason":       "challenge expired",
				"challenge_id": ch.ID,
			})
		}
	}
	return len(expired)
}
