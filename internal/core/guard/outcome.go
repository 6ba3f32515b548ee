package guard

import (
	"fmt"
	"time"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// Action names the kind of request.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
	ActionList    Action = "list"
)

// FailureKind is the typed reason an action did not complete.
type FailureKind string

const (
	RateLimited           FailureKind = "RateLimited"
	PathBlocked           FailureKind = "PathBlocked"
	ConfirmationRequired  FailureKind = "ConfirmationRequired"
	ConfirmationDenied    FailureKind = "ConfirmationDenied"
	SensitiveDataBlocked  FailureKind = "SensitiveDataBlocked"
	DangerousCodeBlocked  FailureKind = "DangerousCodeBlocked"
	ExecutionTimeout      FailureKind = "ExecutionTimeout"
	ExecutionRuntimeError FailureKind = "ExecutionRuntimeError"
	IOFailure             FailureKind = "IOFailure"
	InternalError         FailureKind = "InternalError"
)

var kindErrors = map[FailureKind]error{
	RateLimited:           ErrRateLimited,
	PathBlocked:           ErrPathBlocked,
	ConfirmationRequired:  ErrConfirmationRequired,
	ConfirmationDenied:    ErrConfirmationDenied,
	SensitiveDataBlocked:  ErrSensitiveData,
	DangerousCodeBlocked:  ErrDangerousCode,
	ExecutionTimeout:      ErrExecutionTimeout,
	ExecutionRuntimeError: ErrExecutionRuntime,
	IOFailure:             ErrIO,
	InternalError:         ErrInternal,
}

// Failure explains a refusal. Reason and Remediation never contain raw secrets.
type Failure struct {
	Kind        FailureKind `json:"kind"`
	Reason      string      `json:"reason"`
	Remediation string      `json:"remediation,omitempty"`
	// ResetAt is when the tripped quota frees up, set for RateLimited only.
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// Payload carries the result of a completed action.
type Payload struct {
	Path string `json:"path,omitempty"`
	// Content is the file text for reads, masked when it held secrets.
	Content string `json:"content,omitempty"`
	MIME    string `json:"mime,omitempty"`
	Masked  bool   `json:"masked,omitempty"`
	Bytes   int    `json:"bytes,omitempty"`
	// Entries lists directory entries for list requests.
	Entries []string `json:"entries,omitempty"`
	// Value and Output are the display result and printed text of an execution.
	Value    string        `json:"value,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Warning  string        `json:"warning,omitempty"`
}

// Outcome is what every request returns: success with a payload, or a typed failure.
type Outcome struct {
	ID        string             `json:"id"`
	Action    Action             `json:"action"`
	Level     security.Level     `json:"level"`
	OK        bool               `json:"ok"`
	Payload   *Payload           `json:"payload,omitempty"`
	Failure   *Failure           `json:"failure,omitempty"`
	Challenge *confirm.Challenge `json:"challenge,omitempty"`
}

// Err returns nil for a success, otherwise an error wrapping the sentinel of the failure kind.
func (o Outcome) Err() error {
	if o.OK || o.Failure == nil {
		return nil
	}
	sentinel, ok := kindErrors[o.Failure.Kind]
	if !ok {
		sentinel = ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, o.Failure.Reason)
}

// Pending reports whether the outcome waits on a challenge reply.
func (o Outcome) Pending() bool {
	return o.Failure != nil && o.Failure.Kind == ConfirmationRequired
}
