package handoff

import (
	"context"
	"errors"
	"time"

	"chat-handoff-be/internal/config"
	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/pkg/dedup"
	"chat-handoff-be/pkg/events"
)

// Statuses reported back to the channel adapter for an inbound message.
const (
	StatusSent          = "sent"
	StatusPendingReview = "pending_review"
)

// Outcome is the terminal disposition of one inbound message.
type Outcome struct {
	Status       string        `json:"status"`
	MessageID    string        `json:"message_id"`
	Reply        *ReplyPayload `json:"reply,omitempty"`
	Deduplicated bool          `json:"deduplicated"`
	Cached       bool          `json:"cached"`
}

// ConfigPatch carries the runtime-tunable knobs. Nil fields are left as-is.
type ConfigPatch struct {
	AiProcessingTimeout *time.Duration
	TypingTimeout       *time.Duration
	ResumeDelay         *time.Duration
	AdminReviewDelay    *time.Duration
	ReviewRequired      *bool
	AutoSendEnabled     *bool
	ReclaimInterval     *time.Duration
	DedupCacheTTL       *time.Duration
}

// ErrInvalidConfig refuses a patch carrying a non-positive duration.
var ErrInvalidConfig = errors.New("handoff: config durations must be positive")

// Orchestrator is the facade over presence, the task ledger, the review
// workflow and request deduplication. Controllers and the websocket handler
// only ever talk to this type.
type Orchestrator struct {
	cfg      *RuntimeConfig
	presence *Tracker
	ledger   *Ledger
	reviews  *Workflow
	dedup    *dedup.Group

	generator ReplyGenerator
	store     MessageStore
	emitter   events.Emitter
	logger    logger.ILogger
	sockets   ConnectionCloser
}

// ConnectionCloser force-closes the tracked websocket connections. Implemented
// by the hub; wired in after construction like the presence probe.
type ConnectionCloser interface {
	Shutdown()
}

func NewOrchestrator(
	cfg *RuntimeConfig,
	presence *Tracker,
	ledger *Ledger,
	reviews *Workflow,
	group *dedup.Group,
	generator ReplyGenerator,
	store MessageStore,
	emitter events.Emitter,
	log logger.ILogger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		presence:  presence,
		ledger:    ledger,
		reviews:   reviews,
		dedup:     group,
		generator: generator,
		store:     store,
		emitter:   emitter,
		logger:    log,
	}
	presence.SetAutomation(ledger)
	ledger.SetGenerator(o.runGeneration)
	return o
}

// HandleIncoming drives one inbound user message to its terminal outcome.
// Semantically equivalent concurrent requests collapse onto one automation
// run; a repeat within the cache window returns the stored outcome without
// touching the generator.
func (o *Orchestrator) HandleIncoming(ctx context.Context, userID, messageID string, payload RequestPayload) (*Outcome, error) {
	fingerprint := dedup.Fingerprint(userID, payload.Text, payload.EntityIDs, payload.Options)

	res, err := o.dedup.Do(ctx, fingerprint, func() (interface{}, error) {
		return o.runAutomation(userID, messageID, payload)
	})
	if err != nil {
		return nil, err
	}

	base := res.Value.(*Outcome)
	out := *base
	out.Deduplicated = res.Cached || res.Shared
	out.Cached = res.Cached
	return &out, nil
}

// runAutomation is the single computation behind a fingerprint: persist the
// inbound message, run the generator via the ledger, then hand the reply to
// the review workflow.
func (o *Orchestrator) runAutomation(userID, messageID string, payload RequestPayload) (*Outcome, error) {
	if o.reviews.PendingFor(userID) {
		return nil, ErrReviewPending
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := o.store.PersistMessage(persistCtx, userID, constant.MessageRoleUser, payload.Text, map[string]interface{}{
		"message_id": messageID,
	}); err != nil {
		o.logger.Warn("Orchestrator", "Failed to persist inbound message", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	cancel()

	done, err := o.ledger.Start(userID, messageID, payload)
	if err != nil {
		return nil, err
	}

	// The ledger guarantees exactly one outcome per task: a reply, a timeout,
	// a cancellation or a generator error. No extra select needed.
	result := <-done
	if result.err != nil {
		return nil, result.err
	}

	pending, err := o.reviews.Submit(userID, messageID, *result.reply, payload.Credential)
	if err != nil {
		return nil, err
	}

	status := StatusSent
	if pending {
		status = StatusPendingReview
	}
	return &Outcome{Status: status, MessageID: messageID, Reply: result.reply}, nil
}

// runGeneration executes one generator attempt for the ledger. The context
// deadline mirrors the task deadline; when the ledger has already moved on
// the result is dropped by FinishAttempt.
func (o *Orchestrator) runGeneration(userID, messageID string, payload RequestPayload, attempt uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Get().AiProcessingTimeout)
	defer cancel()

	reply, err := o.generator.GenerateReply(ctx, userID, payload)
	o.ledger.FinishAttempt(userID, messageID, attempt, reply, err)
}

// Typing presence passthroughs for the websocket handler.

func (o *Orchestrator) StartTyping(connectionID string, ident Identity, userID string) error {
	return o.presence.StartTyping(connectionID, ident, userID)
}

func (o *Orchestrator) StopTyping(connectionID string, ident Identity, userID string) error {
	return o.presence.StopTyping(connectionID, ident, userID)
}

func (o *Orchestrator) DropConnection(connectionID string) {
	o.presence.DropConnection(connectionID)
}

// Review passthroughs for the HTTP surface.

func (o *Orchestrator) ApproveReview(userID, reviewID, approvedBy string) error {
	return o.reviews.Approve(userID, reviewID, approvedBy)
}

func (o *Orchestrator) RejectReview(userID, reviewID, reason, rejectedBy string) error {
	return o.reviews.Reject(userID, reviewID, reason, rejectedBy)
}

func (o *Orchestrator) CancelTask(userID, messageID string) error {
	return o.ledger.Cancel(userID, messageID)
}

// Status assembles the live state of every component for the status endpoint.
func (o *Orchestrator) Status() map[string]interface{} {
	cfg := o.cfg.Get()
	return map[string]interface{}{
		"tasks": map[string]interface{}{
			"count": o.ledger.Count(),
			"items": o.ledger.Snapshot(),
		},
		"sessions": map[string]interface{}{
			"count": o.presence.Count(),
			"items": o.presence.Snapshot(),
		},
		"reviews": map[string]interface{}{
			"count": o.reviews.Count(),
			"items": o.reviews.Snapshot(),
		},
		"dedup": map[string]interface{}{
			"active": o.dedup.ActiveCount(),
			"cached": o.dedup.CachedCount(),
		},
		"config": map[string]interface{}{
			"ai_processing_timeout_ms": cfg.AiProcessingTimeout.Milliseconds(),
			"typing_timeout_ms":        cfg.TypingTimeout.Milliseconds(),
			"resume_delay_ms":          cfg.ResumeDelay.Milliseconds(),
			"admin_review_delay_ms":    cfg.AdminReviewDelay.Milliseconds(),
			"review_required":          cfg.ReviewRequired,
			"auto_send_enabled":        cfg.AutoSendEnabled,
			"reclaim_interval_ms":      cfg.ReclaimInterval.Milliseconds(),
			"dedup_cache_ttl_ms":       cfg.DedupCacheTTL.Milliseconds(),
		},
	}
}

// UpdateConfig applies a patch to the runtime config. Timers already armed
// keep their original durations; only decisions made after the patch see the
// new values.
func (o *Orchestrator) UpdateConfig(patch ConfigPatch) (map[string]interface{}, error) {
	for _, d := range []*time.Duration{
		patch.AiProcessingTimeout, patch.TypingTimeout, patch.ResumeDelay,
		patch.AdminReviewDelay, patch.ReclaimInterval, patch.DedupCacheTTL,
	} {
		if d != nil && *d <= 0 {
			return nil, ErrInvalidConfig
		}
	}

	o.cfg.Apply(func(c *config.OrchestratorConfig) {
		if patch.AiProcessingTimeout != nil {
			c.AiProcessingTimeout = *patch.AiProcessingTimeout
		}
		if patch.TypingTimeout != nil {
			c.TypingTimeout = *patch.TypingTimeout
		}
		if patch.ResumeDelay != nil {
			c.ResumeDelay = *patch.ResumeDelay
		}
		if patch.AdminReviewDelay != nil {
			c.AdminReviewDelay = *patch.AdminReviewDelay
		}
		if patch.ReviewRequired != nil {
			c.ReviewRequired = *patch.ReviewRequired
		}
		if patch.AutoSendEnabled != nil {
			c.AutoSendEnabled = *patch.AutoSendEnabled
		}
		if patch.ReclaimInterval != nil {
			c.ReclaimInterval = *patch.ReclaimInterval
		}
		if patch.DedupCacheTTL != nil {
			c.DedupCacheTTL = *patch.DedupCacheTTL
		}
	})

	status := o.Status()
	return status["config"].(map[string]interface{}), nil
}

// SetConnectionCloser wires the websocket hub in after construction.
func (o *Orchestrator) SetConnectionCloser(c ConnectionCloser) {
	o.sockets = c
}

// Shutdown tears the components down in dependency order: connections are
// closed first, then the state maps and their timers are cleared.
func (o *Orchestrator) Shutdown() {
	if o.sockets != nil {
		o.sockets.Shutdown()
	}
	o.ledger.Shutdown()
	o.presence.Shutdown()
	o.reviews.Shutdown()
}
