package guard

import (
	"context"
	"errors"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/confirm"
)

// Reply answers principal's pending challenge. A matching reply resumes
// the parked action from the gate after confirmation; anything else
// cancels it. The challenge is consumed either way. Parked writes and
// deletes are classified again before they run.
func (g *Guard) Reply(ctx context.Context, principal, reply string) Outcome {
	pa := g.peek(principal)
	action := ActionExecute
	if pa != nil {
		action = pa.action
	}

	return g.guarded(ctx, principal, action, func(o Outcome) Outcome {
		ch, matched, err := g.challenges.Answer(principal, reply)
		pa := g.unpark(principal)
		if errors.Is(err, confirm.ErrNoPendingChallenge) || pa == nil {
			g.record(ctx, principal, EventConfirmationDenied, map[string]any{"reason": "no pending challenge"})
			return g.fail(o, ConfirmationDenied, "there is no action waiting for confirmation",
				"send the request again")
		}
		if err != nil {
			return g.fail(o, InternalError, "confirmation could not be checked", "")
		}

		o.ID = pa.requestID
		o.Level = pa.level
		if ch.ID != pa.challengeID {
			g.logger.Warn("challenge does not match parked action", "action", pa.action)
			g.record(ctx, principal, EventConfirmationDenied, map[string]any{
				"reason":       "challenge mismatch",
				"action":       string(pa.action),
				"challenge_id": ch.ID,
			})
			return g.fail(o, ConfirmationDenied, "the confirmation no longer matches a pending action",
				"send the request again")
		}
		if !matched {
			g.record(ctx, principal, cancelledEvent(pa.action), map[string]any{
				"level":  string(pa.level),
				"target": g.displayTarget(pa),
			})
			return g.fail(o, ConfirmationDenied, string(pa.action)+" cancelled", "")
		}

		switch pa.action {
		case ActionWrite:
			if o, ok := g.reclassify(ctx, o, principal, pa); !ok {
				return o
			}
			return g.performWrite(ctx, o, principal, pa)
		case ActionDelete:
			if o, ok := g.reclassify(ctx, o, principal, pa); !ok {
				return o
			}
			return g.performDelete(ctx, o, principal, pa)
		default:
			return g.performExecute(ctx, o, principal, pa)
		}
	})
}

func (g *Guard) peek(principal string) *pendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[principal]
}
