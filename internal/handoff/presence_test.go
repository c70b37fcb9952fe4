package handoff

import (
	"testing"
	"time"

	"chat-handoff-be/internal/constant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() (*Tracker, *stubAutomation, *stubProbe, *recordingEmitter) {
	probe := &stubProbe{}
	emitter := &recordingEmitter{}
	tracker := NewTracker(testConfig(), probe, emitter, nopLogger{})
	automation := &stubAutomation{}
	tracker.SetAutomation(automation)
	return tracker, automation, probe, emitter
}

func TestStartTypingRequiresOperatorRole(t *testing.T) {
	tracker, automation, _, _ := newTestTracker()

	err := tracker.StartTyping("conn-1", Identity{ID: "u1", Role: constant.RoleUser}, "user-9")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, automation.pauseCount())
}

func TestStartTypingPausesAutomation(t *testing.T) {
	tracker, automation, _, emitter := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))

	assert.Equal(t, 1, automation.pauseCount())
	typist, ok := tracker.ActiveTypist("user-9")
	assert.True(t, ok)
	assert.Equal(t, "op-1", typist)
	assert.Equal(t, 1, emitter.count(constant.EventPresenceChanged))
}

func TestStopTypingResumesAfterDelay(t *testing.T) {
	tracker, automation, _, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	require.NoError(t, tracker.StopTyping("conn-1", operatorIdent("op-1"), "user-9"))

	// Session no longer counts as typing, but the resume waits for the delay
	_, ok := tracker.ActiveTypist("user-9")
	assert.False(t, ok)
	assert.Equal(t, 0, automation.resumeCount())

	assert.Eventually(t, func() bool {
		return automation.resumeCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestResumeCancelledWhenTypingRestarts(t *testing.T) {
	tracker, automation, _, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	require.NoError(t, tracker.StopTyping("conn-1", operatorIdent("op-1"), "user-9"))
	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))

	// The armed resume must never fire once the operator types again
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, automation.resumeCount())
}

func TestStopTypingUnknownSessionIsNoop(t *testing.T) {
	tracker, automation, _, _ := newTestTracker()

	require.NoError(t, tracker.StopTyping("conn-1", operatorIdent("op-1"), "user-9"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, automation.resumeCount())
}

func TestMostRecentTypistWins(t *testing.T) {
	tracker, _, _, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, tracker.StartTyping("conn-2", operatorIdent("op-2"), "user-9"))

	typist, ok := tracker.ActiveTypist("user-9")
	assert.True(t, ok)
	assert.Equal(t, "op-2", typist)
}

func TestActiveTypistEvictsDeadConnections(t *testing.T) {
	tracker, _, probe, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	probe.kill("conn-1")

	_, ok := tracker.ActiveTypist("user-9")
	assert.False(t, ok)
	assert.Equal(t, 0, tracker.Count())
}

func TestDropConnectionResumesTypingSession(t *testing.T) {
	tracker, automation, _, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	tracker.DropConnection("conn-1")

	assert.Equal(t, 0, tracker.Count())
	assert.Equal(t, 1, automation.resumeCount())
}

func TestDropConnectionLeavesOtherSessions(t *testing.T) {
	tracker, _, _, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	require.NoError(t, tracker.StartTyping("conn-2", operatorIdent("op-2"), "user-8"))

	tracker.DropConnection("conn-1")
	assert.Equal(t, 1, tracker.Count())

	typist, ok := tracker.ActiveTypist("user-8")
	assert.True(t, ok)
	assert.Equal(t, "op-2", typist)
}

func TestReclaimDeadResumesExactlyOnce(t *testing.T) {
	tracker, automation, probe, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	probe.kill("conn-1")

	assert.Equal(t, 1, tracker.ReclaimDead())
	assert.Equal(t, 1, automation.resumeCount())

	// A second sweep finds nothing
	assert.Equal(t, 0, tracker.ReclaimDead())
	assert.Equal(t, 1, automation.resumeCount())
}

func TestReclaimStaleSkipsActiveAndDead(t *testing.T) {
	tracker, automation, probe, _ := newTestTracker()

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	require.NoError(t, tracker.StartTyping("conn-2", operatorIdent("op-2"), "user-8"))
	probe.kill("conn-2")

	time.Sleep(30 * time.Millisecond)

	// conn-2 is dead so it belongs to ReclaimDead, not the stale sweep
	assert.Equal(t, 1, tracker.ReclaimStale(10*time.Millisecond))
	assert.Equal(t, 0, automation.resumeCount())

	// Recent activity survives the sweep
	require.NoError(t, tracker.StartTyping("conn-3", operatorIdent("op-3"), "user-7"))
	assert.Equal(t, 0, tracker.ReclaimStale(time.Minute))
}
