package constant

// Roles attached to authenticated connections.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

// Message author roles persisted to conversation history.
const (
	MessageRoleUser     = "user"
	MessageRoleModel    = "model"
	MessageRoleOperator = "operator"
)

// Automation task statuses.
const (
	TaskProcessing = "processing"
	TaskPaused     = "paused"
)

// Pause reasons recorded on the task.
const (
	PauseReasonOperatorTyping = "operator_typing"
)

// Event type codes emitted by the orchestrator.
// Every terminal state transition emits exactly one of these.
const (
	EventConnected     = "CONNECTED"
	EventAuthFailed    = "AUTH_FAILED"
	EventAuthenticated = "AUTHENTICATED"
	EventDisconnected  = "DISCONNECTED"

	EventPresenceChanged = "PRESENCE_CHANGED"

	EventAutomationStarted   = "AUTOMATION_STARTED"
	EventAutomationPaused    = "AUTOMATION_PAUSED"
	EventAutomationResumed   = "AUTOMATION_RESUMED"
	EventAutomationTimeout   = "AUTOMATION_TIMEOUT"
	EventAutomationCancelled = "AUTOMATION_CANCELLED"
	EventAutomationError     = "AUTOMATION_ERROR"

	EventReviewPending      = "REVIEW_PENDING"
	EventReviewApproved     = "REVIEW_APPROVED"
	EventReviewRejected     = "REVIEW_REJECTED"
	EventReviewAutoApproved = "REVIEW_AUTO_APPROVED"
	EventReviewStaleRemoved = "REVIEW_STALE_REMOVED"

	EventReplySent = "REPLY_SENT"
	EventSendError = "SEND_ERROR"
)

// HandoffEventsTopic is the in-process watermill topic every orchestrator
// event is published on.
const HandoffEventsTopic = "handoff_events"

// ClusterEventsChannel is the Redis pub/sub channel used by the websocket hub
// for cross-instance broadcast.
const ClusterEventsChannel = "handoff_cluster_events"
