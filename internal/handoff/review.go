package handoff

import (
	"context"
	"sync"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/pkg/events"

	"github.com/google/uuid"
)

// Workflow parks computed replies pending operator sign-off. At most one
// pending review per user id.
type Workflow struct {
	mu      sync.Mutex
	reviews map[string]*PendingReview // keyed by user id

	deliverer Deliverer
	store     MessageStore
	emitter   events.Emitter
	logger    logger.ILogger
	cfg       *RuntimeConfig
}

func NewWorkflow(cfg *RuntimeConfig, deliverer Deliverer, store MessageStore, emitter events.Emitter, log logger.ILogger) *Workflow {
	return &Workflow{
		reviews:   make(map[string]*PendingReview),
		deliverer: deliverer,
		store:     store,
		emitter:   emitter,
		logger:    log,
		cfg:       cfg,
	}
}

// Submit routes a completed reply. With review disabled it goes straight to
// delivery; otherwise a PendingReview is created and, when auto-send is
// enabled, an auto-approve timer armed. The bool reports whether the reply
// was parked for review rather than sent.
func (w *Workflow) Submit(userID, messageID string, reply ReplyPayload, credential string) (bool, error) {
	cfg := w.cfg.Get()
	if !cfg.ReviewRequired {
		return false, w.send(userID, reply, messageID, credential, constant.EventReplySent)
	}

	review := &PendingReview{
		ReviewID:   uuid.NewString(),
		UserID:     userID,
		MessageID:  messageID,
		Reply:      reply,
		CreatedAt:  time.Now(),
		Credential: credential,
	}

	w.mu.Lock()
	if old, exists := w.reviews[userID]; exists {
		// A replaced review must lose its timer before the new one lands.
		old.stopTimers()
		w.logger.Warn("Review", "Replacing outstanding review", map[string]interface{}{
			"user_id":       userID,
			"old_review_id": old.ReviewID,
		})
	}
	w.reviews[userID] = review

	var autoApproveMs interface{}
	if cfg.AutoSendEnabled {
		reviewID := review.ReviewID
		review.autoTimer = time.AfterFunc(cfg.AdminReviewDelay, func() {
			w.autoApprove(userID, reviewID)
		})
		autoApproveMs = cfg.AdminReviewDelay.Milliseconds()
	}
	w.mu.Unlock()

	w.emitter.Emit(events.New(constant.EventReviewPending, map[string]interface{}{
		"user_id":         userID,
		"message_id":      messageID,
		"review_id":       review.ReviewID,
		"reply":           reply.Text,
		"auto_approve_ms": autoApproveMs,
	}))
	return true, nil
}

// Approve sends the parked reply and destroys the review. A stale or
// duplicate approval is a warned no-op; at most one send can ever happen for
// a given review id.
func (w *Workflow) Approve(userID, reviewID, approvedBy string) error {
	review, ok := w.take(userID, reviewID)
	if !ok {
		w.logger.Warn("Review", "Approve for unknown or stale review", map[string]interface{}{
			"user_id":   userID,
			"review_id": reviewID,
		})
		return ErrNotFoundOrStale
	}

	if err := w.send(userID, review.Reply, review.MessageID, review.Credential, constant.EventReplySent); err != nil {
		return err
	}

	w.emitter.Emit(events.New(constant.EventReviewApproved, map[string]interface{}{
		"user_id":     userID,
		"review_id":   reviewID,
		"approved_by": approvedBy,
	}))
	return nil
}

// Reject destroys the review without sending.
func (w *Workflow) Reject(userID, reviewID, reason, rejectedBy string) error {
	_, ok := w.take(userID, reviewID)
	if !ok {
		w.logger.Warn("Review", "Reject for unknown or stale review", map[string]interface{}{
			"user_id":   userID,
			"review_id": reviewID,
		})
		return ErrNotFoundOrStale
	}

	w.emitter.Emit(events.New(constant.EventReviewRejected, map[string]interface{}{
		"user_id":     userID,
		"review_id":   reviewID,
		"reason":      reason,
		"rejected_by": rejectedBy,
	}))
	return nil
}

// autoApprove fires on the timer. The review is re-validated under lock so a
// concurrent manual approve/reject always wins the race.
func (w *Workflow) autoApprove(userID, reviewID string) {
	review, ok := w.take(userID, reviewID)
	if !ok {
		return
	}

	if err := w.send(userID, review.Reply, review.MessageID, review.Credential, constant.EventReplySent); err != nil {
		return
	}

	w.emitter.Emit(events.New(constant.EventReviewAutoApproved, map[string]interface{}{
		"user_id":   userID,
		"review_id": reviewID,
	}))
}

// take atomically removes and returns the review if it still matches.
// Removal always cancels the auto-approve timer first.
func (w *Workflow) take(userID, reviewID string) (*PendingReview, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	review, ok := w.reviews[userID]
	if !ok || review.ReviewID != reviewID {
		return nil, false
	}
	review.stopTimers()
	delete(w.reviews, userID)
	return review, true
}

// send delivers the reply on the external channel and records it in
// conversation history as model-authored. Delivery failure is terminal for
// the reply: it is surfaced as a SEND_ERROR event, never retried here.
func (w *Workflow) send(userID string, reply ReplyPayload, messageID, credential, sentEvent string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.deliverer.DeliverToUser(ctx, userID, reply, credential); err != nil {
		w.logger.Error("Review", "Delivery failed", map[string]interface{}{
			"user_id":    userID,
			"message_id": messageID,
			"error":      err.Error(),
		})
		w.emitter.Emit(events.New(constant.EventSendError, map[string]interface{}{
			"user_id":    userID,
			"message_id": messageID,
			"error":      err.Error(),
		}))
		return err
	}

	metadata := map[string]interface{}{"message_id": messageID}
	for k, v := range reply.Metadata {
		metadata[k] = v
	}
	if err := w.store.PersistMessage(ctx, userID, constant.MessageRoleModel, reply.Text, metadata); err != nil {
		// Best effort only
		w.logger.Warn("Review", "Failed to persist sent reply", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	w.emitter.Emit(events.New(sentEvent, map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
		"reply":      reply.Text,
	}))
	return nil
}

// PendingFor reports whether a review is outstanding for the user.
func (w *Workflow) PendingFor(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.reviews[userID]
	return ok
}

// ReclaimStale evicts reviews older than maxAge without sending.
func (w *Workflow) ReclaimStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	var evicted []*PendingReview
	w.mu.Lock()
	for userID, review := range w.reviews {
		if review.CreatedAt.After(cutoff) {
			continue
		}
		review.stopTimers()
		delete(w.reviews, userID)
		evicted = append(evicted, review)
	}
	w.mu.Unlock()

	for _, review := range evicted {
		w.emitter.Emit(events.New(constant.EventReviewStaleRemoved, map[string]interface{}{
			"user_id":   review.UserID,
			"review_id": review.ReviewID,
		}))
	}
	return len(evicted)
}

// Count returns the number of pending reviews.
func (w *Workflow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.reviews)
}

// Snapshot reports review ages for the status endpoint.
func (w *Workflow) Snapshot() []map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(w.reviews))
	for _, review := range w.reviews {
		out = append(out, map[string]interface{}{
			"user_id":     review.UserID,
			"review_id":   review.ReviewID,
			"message_id":  review.MessageID,
			"age_seconds": time.Since(review.CreatedAt).Seconds(),
		})
	}
	return out
}

// Shutdown cancels every auto-approve timer and clears the map.
func (w *Workflow) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for userID, review := range w.reviews {
		review.stopTimers()
		delete(w.reviews, userID)
	}
}
