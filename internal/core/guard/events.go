package guard

// Audit event names.
const (
	EventReadBlocked          = "read-blocked"
	EventFileRead             = "file-read"
	EventSensitiveMasked      = "sensitive-content-masked"
	EventWriteBlocked         = "write-blocked"
	EventWriteCancelled       = "write-cancelled"
	EventFileWritten          = "file-written"
	EventDeleteBlocked        = "delete-blocked"
	EventDeleteCancelled      = "delete-cancelled"
	EventFileDeleted          = "file-deleted"
	EventDirListed            = "dir-listed"
	EventRateLimited          = "rate-limited"
	EventSensitiveDataInCode  = "sensitive-data-in-code"
	EventDangerousCodeBlocked = "dangerous-code-blocked"
	EventExecutionCancelled   = "execution-cancelled"
	EventCodeExecuted         = "code-executed"
	EventExecutionError       = "execution-error"
	EventExecutionTimeout     = "execution-timeout"
	EventConfirmationIssued   = "confirmation-issued"
	EventConfirmationDenied   = "confirmation-denied"
	EventIOFailure            = "io-failure"
	EventInternalError        = "internal-error"
)

func cancelledEvent(action Action) string {
	switch action {
	case ActionWrite:
		return EventWriteCancelled
	case ActionDelete:
		return EventDeleteCancelled
	default:
		return EventExecutionCancelled
	}
}
