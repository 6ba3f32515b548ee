package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/sandbox"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// RequestExecute runs code in the sandbox after confirmation and screening.
func (g *Guard) RequestExecute(ctx context.Context, principal, code string, opts RequestOptions) Outcome {
	return g.guarded(ctx, principal, ActionExecute, func(o Outcome) Outcome {
		if o, limited := g.rateLimited(ctx, o, principal, g.execLimiter); limited {
			return o
		}

		o.Level = security.LevelWarning
		pa := &pendingAction{action: ActionExecute, level: security.LevelWarning, code: code, opts: opts}
		o, state := g.confirmAction(ctx, o, principal, pa, "code execution requires confirmation")
		if state != confirmed {
			return o
		}
		return g.performExecute(ctx, o, principal, pa)
	})
}

// performExecute screens the code and runs it. Quota is counted for every
// evaluation that reaches the sandbox.
func (g *Guard) performExecute(ctx context.Context, o Outcome, principal string, pa *pendingAction) Outcome {
	screen := g.security.ScreenCode(pa.code)
	switch {
	case screen.Dangerous:
		g.record(ctx, principal, EventDangerousCodeBlocked, map[string]any{"reason": screen.Reason})
		return g.fail(o, DangerousCodeBlocked, screen.Reason, "remove the flagged operation and try again")
	case screen.Sensitive:
		g.record(ctx, principal, EventSensitiveDataInCode, map[string]any{"kinds": screen.Detection.Kinds()})
		return g.fail(o, SensitiveDataBlocked, screen.Reason, "remove credentials and personal data from the code")
	}

	if o, ok := g.reserve(ctx, o, principal, g.execLimiter); !ok {
		return o
	}

	timeout := pa.opts.Timeout
	if timeout <= 0 {
		timeout = g.opts.ExecTimeout
	}

	start := time.Now()
	result, err := g.sandbox.Execute(ctx, principal, pa.code, timeout)
	executionDurationSeconds.Observe(time.Since(start).Seconds())

	remaining := g.execLimiter.Remaining(principal)
	switch {
	case errors.Is(err, sandbox.ErrTimeout):
		g.record(ctx, principal, EventExecutionTimeout, map[string]any{"timeout_ms": timeout.Milliseconds()})
		return g.fail(o, ExecutionTimeout,
			fmt.Sprintf("execution exceeded %s and was stopped", timeout),
			fmt.Sprintf("simplify the code or shorten loops; %d executions remaining", remaining))
	case errors.Is(err, sandbox.ErrRuntime):
		g.record(ctx, principal, EventExecutionError, map[string]any{"error": err})
		return g.fail(o, ExecutionRuntimeError, err.Error(), "")
	case err != nil:
		g.logger.Error("sandbox failed", "error", err)
		g.record(ctx, principal, EventExecutionError, map[string]any{"error": err})
		return g.fail(o, InternalError, "execution could not be completed", "")
	}

	payload := &Payload{
		Value:    g.scanner.Mask(result.Value),
		Output:   g.scanner.Mask(result.Output),
		Duration: result.Duration,
	}
	if remaining == 0 {
		payload.Warning = fmt.Sprintf("execution quota used up until %s", g.execLimiter.ResetAt(principal).Local().Format("15:04:05"))
	}
	g.record(ctx, principal, EventCodeExecuted, map[string]any{
		"duration_ms": result.Duration.Milliseconds(),
		"steps":       result.Steps,
		"remaining":   remaining,
	})
	return g.succeed(o, payload)
}
