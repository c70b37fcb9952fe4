package handoff

import "errors"

// Error taxonomy of the orchestrator. Every member is recovered locally and
// surfaced through emitted events; none of them crashes the process.
var (
	// ErrUnauthorized refuses a privileged operation. The connection stays open.
	ErrUnauthorized = errors.New("handoff: unauthorized")

	// ErrNotFoundOrStale marks an operation referencing an id that no longer
	// matches current state. Callers treat it as a warned no-op, because races
	// between concurrent operator actions are expected.
	ErrNotFoundOrStale = errors.New("handoff: not found or stale")

	// ErrOperatorTyping refuses automation start while a human is responding.
	ErrOperatorTyping = errors.New("handoff: operator is typing")

	// ErrAutomationBusy refuses a second concurrent task for the same user.
	ErrAutomationBusy = errors.New("handoff: automation already in flight for user")

	// ErrReviewPending refuses new automation while a review is outstanding.
	ErrReviewPending = errors.New("handoff: review pending for user")

	// ErrTimeout marks a task whose processing deadline elapsed.
	ErrTimeout = errors.New("handoff: automation deadline exceeded")

	// ErrCancelled marks a task torn down by explicit operator action.
	ErrCancelled = errors.New("handoff: automation cancelled")

	// ErrShutdown marks work aborted because the orchestrator is stopping.
	ErrShutdown = errors.New("handoff: orchestrator shutting down")
)
