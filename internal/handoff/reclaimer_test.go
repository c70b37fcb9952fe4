package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepReclaimsDeadConnectionExactlyOnce(t *testing.T) {
	cfg := testConfig()
	probe := &stubProbe{}
	emitter := &recordingEmitter{}
	tracker := NewTracker(cfg, probe, emitter, nopLogger{})
	automation := &stubAutomation{}
	tracker.SetAutomation(automation)
	ledger := NewLedger(cfg, tracker, emitter, nopLogger{})
	ledger.SetGenerator(func(userID, messageID string, payload RequestPayload, attempt uint64) {})
	reviews := NewWorkflow(cfg, &stubDeliverer{}, &stubStore{}, emitter, nopLogger{})

	reclaimer := NewReclaimer(cfg, tracker, ledger, reviews, nopLogger{})

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	probe.kill("conn-1")

	reclaimer.Sweep()
	assert.Equal(t, 0, tracker.Count())
	assert.Equal(t, 1, automation.resumeCount())

	// The next sweep finds a clean state
	reclaimer.Sweep()
	assert.Equal(t, 1, automation.resumeCount())
}

func TestSweepLeavesHealthyStateAlone(t *testing.T) {
	cfg := testConfig()
	probe := &stubProbe{}
	emitter := &recordingEmitter{}
	tracker := NewTracker(cfg, probe, emitter, nopLogger{})
	tracker.SetAutomation(&stubAutomation{})
	ledger := NewLedger(cfg, tracker, emitter, nopLogger{})
	ledger.SetGenerator(func(userID, messageID string, payload RequestPayload, attempt uint64) {})
	reviews := NewWorkflow(cfg, &stubDeliverer{}, &stubStore{}, emitter, nopLogger{})

	reclaimer := NewReclaimer(cfg, tracker, ledger, reviews, nopLogger{})

	require.NoError(t, tracker.StartTyping("conn-1", operatorIdent("op-1"), "user-9"))
	_, err := ledger.Start("user-8", "msg-1", RequestPayload{})
	require.NoError(t, err)

	reclaimer.Sweep()
	assert.Equal(t, 1, tracker.Count())
	assert.Equal(t, 1, ledger.Count())
	assert.Equal(t, 0, reviews.Count())
}

func TestReclaimerStartAndStop(t *testing.T) {
	cfg := testConfig()
	probe := &stubProbe{}
	emitter := &recordingEmitter{}
	tracker := NewTracker(cfg, probe, emitter, nopLogger{})
	tracker.SetAutomation(&stubAutomation{})
	ledger := NewLedger(cfg, tracker, emitter, nopLogger{})
	reviews := NewWorkflow(cfg, &stubDeliverer{}, &stubStore{}, emitter, nopLogger{})

	reclaimer := NewReclaimer(cfg, tracker, ledger, reviews, nopLogger{})
	require.NoError(t, reclaimer.Start())
	time.Sleep(10 * time.Millisecond)
	reclaimer.Stop()
}
