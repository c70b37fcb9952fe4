package handoff

import (
	"errors"
	"testing"
	"time"

	"chat-handoff-be/internal/config"
	"chat-handoff-be/internal/constant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkflow(cfg *RuntimeConfig) (*Workflow, *stubDeliverer, *stubStore, *recordingEmitter) {
	deliverer := &stubDeliverer{}
	store := &stubStore{}
	emitter := &recordingEmitter{}
	workflow := NewWorkflow(cfg, deliverer, store, emitter, nopLogger{})
	return workflow, deliverer, store, emitter
}

func submittedReviewID(t *testing.T, emitter *recordingEmitter) string {
	t.Helper()
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	for i := len(emitter.events) - 1; i >= 0; i-- {
		if emitter.events[i].EventType() == constant.EventReviewPending {
			id, _ := emitter.events[i].Payload()["review_id"].(string)
			return id
		}
	}
	t.Fatal("no REVIEW_PENDING event emitted")
	return ""
}

func TestSubmitSendsDirectlyWhenReviewDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Apply(func(c *config.OrchestratorConfig) { c.ReviewRequired = false })
	workflow, deliverer, store, emitter := newTestWorkflow(cfg)

	pending, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "100 บาท"}, "cred")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, 1, deliverer.deliveredCount())
	assert.Equal(t, 1, store.persistedCount())
	assert.Equal(t, 1, emitter.count(constant.EventReplySent))
	assert.Equal(t, 0, workflow.Count())
}

func TestApproveSendsExactlyOnce(t *testing.T) {
	workflow, deliverer, _, emitter := newTestWorkflow(testConfig())

	pending, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.Equal(t, 0, deliverer.deliveredCount())

	reviewID := submittedReviewID(t, emitter)
	require.NoError(t, workflow.Approve("user-9", reviewID, "op-1"))
	assert.Equal(t, 1, deliverer.deliveredCount())
	assert.Equal(t, 1, emitter.count(constant.EventReviewApproved))

	// Idempotency: the second approval is a warned no-op
	assert.ErrorIs(t, workflow.Approve("user-9", reviewID, "op-2"), ErrNotFoundOrStale)
	assert.Equal(t, 1, deliverer.deliveredCount())
}

func TestRejectDiscardsWithoutSending(t *testing.T) {
	workflow, deliverer, _, emitter := newTestWorkflow(testConfig())

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)
	reviewID := submittedReviewID(t, emitter)

	require.NoError(t, workflow.Reject("user-9", reviewID, "wrong price", "op-1"))
	assert.Equal(t, 0, workflow.Count())
	assert.Equal(t, 1, emitter.count(constant.EventReviewRejected))

	// The cancelled auto-approve timer must never fire afterwards
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, deliverer.deliveredCount())
}

func TestAutoApproveFiresAfterDelay(t *testing.T) {
	workflow, deliverer, _, emitter := newTestWorkflow(testConfig())

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return deliverer.deliveredCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, emitter.count(constant.EventReviewAutoApproved))
	assert.Equal(t, 0, workflow.Count())
}

func TestAutoApproveDisabledKeepsReviewPending(t *testing.T) {
	cfg := testConfig()
	cfg.Apply(func(c *config.OrchestratorConfig) { c.AutoSendEnabled = false })
	workflow, deliverer, _, _ := newTestWorkflow(cfg)

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, deliverer.deliveredCount())
	assert.Equal(t, 1, workflow.Count())
}

func TestManualApproveBeatsAutoApprove(t *testing.T) {
	workflow, deliverer, _, emitter := newTestWorkflow(testConfig())

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)
	reviewID := submittedReviewID(t, emitter)

	require.NoError(t, workflow.Approve("user-9", reviewID, "op-1"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, deliverer.deliveredCount())
	assert.Equal(t, 0, emitter.count(constant.EventReviewAutoApproved))
}

func TestSubmitReplacesOutstandingReview(t *testing.T) {
	cfg := testConfig()
	cfg.Apply(func(c *config.OrchestratorConfig) { c.AutoSendEnabled = false })
	workflow, _, _, emitter := newTestWorkflow(cfg)

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "first"}, "cred")
	require.NoError(t, err)
	oldID := submittedReviewID(t, emitter)

	_, err = workflow.Submit("user-9", "msg-2", ReplyPayload{Text: "second"}, "cred")
	require.NoError(t, err)
	assert.Equal(t, 1, workflow.Count())

	// The replaced review id no longer resolves
	assert.ErrorIs(t, workflow.Approve("user-9", oldID, "op-1"), ErrNotFoundOrStale)
}

func TestDeliveryFailureIsTerminal(t *testing.T) {
	workflow, deliverer, store, emitter := newTestWorkflow(testConfig())
	deliverer.fail = errors.New("channel 502")

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)
	reviewID := submittedReviewID(t, emitter)

	assert.Error(t, workflow.Approve("user-9", reviewID, "op-1"))
	assert.Equal(t, 1, emitter.count(constant.EventSendError))
	assert.Equal(t, 0, emitter.count(constant.EventReplySent))
	assert.Equal(t, 0, store.persistedCount())
	assert.Equal(t, 0, workflow.Count())
}

func TestReclaimStaleEvictsOldReviews(t *testing.T) {
	cfg := testConfig()
	cfg.Apply(func(c *config.OrchestratorConfig) { c.AutoSendEnabled = false })
	workflow, deliverer, _, emitter := newTestWorkflow(cfg)

	_, err := workflow.Submit("user-9", "msg-1", ReplyPayload{Text: "answer"}, "cred")
	require.NoError(t, err)

	assert.Equal(t, 0, workflow.ReclaimStale(time.Minute))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, workflow.ReclaimStale(10*time.Millisecond))
	assert.Equal(t, 1, emitter.count(constant.EventReviewStaleRemoved))
	assert.Equal(t, 0, deliverer.deliveredCount())
	assert.Equal(t, 0, workflow.Count())
}
