package guard

import "errors"

// Sentinel errors returned by Outcome.Err, one per failure kind.
var (
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrPathBlocked          = errors.New("policy violation")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrConfirmationDenied   = errors.New("confirmation denied")
	ErrSensitiveData        = errors.New("sensitive content detected")
	ErrDangerousCode        = errors.New("dangerous pattern detected")
	ErrExecutionTimeout     = errors.New("execution timeout")
	ErrExecutionRuntime     = errors.New("execution runtime error")
	ErrIO                   = errors.New("io failure")
	ErrInternal             = errors.New("internal error")
)
