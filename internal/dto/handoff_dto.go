package dto

// IncomingMessageRequest is the channel adapter's inbound message.
type IncomingMessageRequest struct {
	UserID     string            `json:"user_id" validate:"required"`
	MessageID  string            `json:"message_id" validate:"required"`
	Text       string            `json:"text" validate:"required"`
	EntityIDs  []string          `json:"entity_ids"`
	Options    map[string]string `json:"options"`
	Credential string            `json:"credential"`
}

// ApproveReviewRequest confirms a pending reply for delivery.
type ApproveReviewRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	ReviewID string `json:"review_id" validate:"required"`
}

// RejectReviewRequest discards a pending reply.
type RejectReviewRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	ReviewID string `json:"review_id" validate:"required"`
	Reason   string `json:"reason"`
}

// CancelTaskRequest aborts an in-flight automation task. MessageID is
// optional; when present the cancel only applies to that exact message.
type CancelTaskRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	MessageID string `json:"message_id"`
}

// UpdateConfigRequest patches the runtime-tunable orchestrator knobs. All
// durations are milliseconds. Absent fields are left unchanged.
type UpdateConfigRequest struct {
	AiProcessingTimeoutMs *int64 `json:"ai_processing_timeout_ms"`
	TypingTimeoutMs       *int64 `json:"typing_timeout_ms"`
	ResumeDelayMs         *int64 `json:"resume_delay_ms"`
	AdminReviewDelayMs    *int64 `json:"admin_review_delay_ms"`
	ReviewRequired        *bool  `json:"review_required"`
	AutoSendEnabled       *bool  `json:"auto_send_enabled"`
	ReclaimIntervalMs     *int64 `json:"reclaim_interval_ms"`
	DedupCacheTTLMs       *int64 `json:"dedup_cache_ttl_ms"`
}
