package handoff

import (
	"context"
	"time"
)

// Identity is the authenticated principal behind a connection.
type Identity struct {
	ID          string
	DisplayName string
	Role        string
}

// RequestPayload is everything needed to (re)invoke the reply generator for
// one inbound message. Retained on the task so a paused run can resume.
type RequestPayload struct {
	Text       string
	EntityIDs  []string
	Options    map[string]string
	Credential string // delivery-channel credential, used at send time
}

// ReplyPayload is a generated reply awaiting review or delivery.
type ReplyPayload struct {
	Text     string
	Metadata map[string]interface{}
}

// OperatorSession tracks one operator attending one user conversation.
type OperatorSession struct {
	OperatorID   string
	UserID       string
	Typing       bool
	LastActivity time.Time
	ConnectionID string

	typingSince time.Time
	resumeTimer *time.Timer
}

// stopTimers is the single teardown point; every session removal goes through
// it so a stale resume timer can never fire against removed state.
func (s *OperatorSession) stopTimers() {
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
}

// AutomationTask is the per-user record of an in-flight reply computation.
type AutomationTask struct {
	UserID      string
	MessageID   string
	Status      string
	PauseReason string
	CreatedAt   time.Time
	Payload     RequestPayload

	// attempt increments on every (re)invocation of the generator. A finished
	// generation is only accepted if its attempt still matches, so a result
	// computed before a pause cannot complete the task afterwards.
	attempt  uint64
	deadline *time.Timer
	done     chan taskOutcome
	finished bool
}

type taskOutcome struct {
	reply *ReplyPayload
	err   error
}

func (t *AutomationTask) stopTimers() {
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
}

// PendingReview holds a computed-but-unsent reply awaiting disposition.
type PendingReview struct {
	ReviewID   string
	UserID     string
	MessageID  string
	Reply      ReplyPayload
	CreatedAt  time.Time
	Credential string

	autoTimer *time.Timer
}

func (r *PendingReview) stopTimers() {
	if r.autoTimer != nil {
		r.autoTimer.Stop()
		r.autoTimer = nil
	}
}

// ReplyGenerator is the external automated-reply collaborator. It may be
// slow; the orchestrator stops waiting on it rather than cancelling it.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, userID string, payload RequestPayload) (*ReplyPayload, error)
}

// Deliverer pushes a reply to the user on the external channel.
type Deliverer interface {
	DeliverToUser(ctx context.Context, userID string, reply ReplyPayload, credential string) error
}

// MessageStore persists a message to conversation history. Best effort;
// failures are logged, never retried here.
type MessageStore interface {
	PersistMessage(ctx context.Context, userID, role, content string, metadata map[string]interface{}) error
}

// ConnectionProbe answers whether a connection id still has a live socket.
// Implemented by the websocket hub.
type ConnectionProbe interface {
	IsLive(connectionID string) bool
}
