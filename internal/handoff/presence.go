package handoff

import (
	"sync"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/pkg/events"
)

// automationController is the slice of the task ledger the presence tracker
// drives: pause on typing start, resume after typing stops.
type automationController interface {
	Pause(userID, reason string)
	Resume(userID, operatorID string) bool
}

// Tracker owns the per-operator typing sessions. One active target user per
// operator; the session survives stop-typing until the resume delay elapses.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*OperatorSession // keyed by operator id

	probe      ConnectionProbe
	automation automationController
	emitter    events.Emitter
	logger     logger.ILogger
	cfg        *RuntimeConfig
}

func NewTracker(cfg *RuntimeConfig, probe ConnectionProbe, emitter events.Emitter, log logger.ILogger) *Tracker {
	return &Tracker{
		sessions: make(map[string]*OperatorSession),
		probe:    probe,
		emitter:  emitter,
		logger:   log,
		cfg:      cfg,
	}
}

// SetAutomation wires the task ledger in after construction (the ledger needs
// the tracker too, so one side is attached late).
func (t *Tracker) SetAutomation(a automationController) {
	t.automation = a
}

// StartTyping records that an operator began responding to userID and pauses
// automation for that user. Requires an authenticated operator identity.
func (t *Tracker) StartTyping(connectionID string, ident Identity, userID string) error {
	if ident.Role != constant.RoleOperator {
		return ErrUnauthorized
	}

	now := time.Now()
	t.mu.Lock()
	s, ok := t.sessions[ident.ID]
	if !ok {
		s = &OperatorSession{OperatorID: ident.ID}
		t.sessions[ident.ID] = s
	}
	// A pending resume from an earlier stop must never fire once the operator
	// is typing again.
	s.stopTimers()
	s.UserID = userID
	s.Typing = true
	s.LastActivity = now
	s.typingSince = now
	s.ConnectionID = connectionID
	t.mu.Unlock()

	t.automation.Pause(userID, constant.PauseReasonOperatorTyping)

	t.emitter.Emit(events.New(constant.EventPresenceChanged, map[string]interface{}{
		"operator_id": ident.ID,
		"user_id":     userID,
		"typing":      true,
	}))
	return nil
}

// StopTyping marks the operator idle and arms the resume-delay timer. The
// presence broadcast goes out immediately; the resume itself waits for the
// delay and re-validates before taking effect.
func (t *Tracker) StopTyping(connectionID string, ident Identity, userID string) error {
	if ident.Role != constant.RoleOperator {
		return ErrUnauthorized
	}

	t.mu.Lock()
	s, ok := t.sessions[ident.ID]
	if !ok || s.UserID != userID {
		t.mu.Unlock()
		t.logger.Warn("Presence", "Stop typing for unknown session", map[string]interface{}{
			"operator_id": ident.ID,
			"user_id":     userID,
		})
		return nil
	}
	s.Typing = false
	s.LastActivity = time.Now()
	s.stopTimers()

	delay := t.cfg.Get().ResumeDelay
	operatorID := ident.ID
	s.resumeTimer = time.AfterFunc(delay, func() {
		t.fireResume(operatorID, userID)
	})
	t.mu.Unlock()

	t.emitter.Emit(events.New(constant.EventPresenceChanged, map[string]interface{}{
		"operator_id": ident.ID,
		"user_id":     userID,
		"typing":      false,
	}))
	return nil
}

// fireResume runs when a stop-typing delay elapses. State may have moved on
// since the timer was armed, so everything is re-checked under lock first.
func (t *Tracker) fireResume(operatorID, userID string) {
	t.mu.Lock()
	s, ok := t.sessions[operatorID]
	if !ok || s.Typing || s.UserID != userID {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.automation.Resume(userID, operatorID)
}

// ActiveTypist returns the operator currently typing for userID, lazily
// evicting sessions whose connection has died. This eviction is what keeps a
// crashed operator client from blocking automation forever. When several
// operators type at once, the most recent starter wins.
func (t *Tracker) ActiveTypist(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var winner *OperatorSession
	for operatorID, s := range t.sessions {
		if !s.Typing || s.UserID != userID {
			continue
		}
		if !t.probe.IsLive(s.ConnectionID) {
			s.stopTimers()
			delete(t.sessions, operatorID)
			t.logger.Info("Presence", "Evicted session with dead connection", map[string]interface{}{
				"operator_id": operatorID,
				"user_id":     userID,
			})
			continue
		}
		if winner == nil || s.typingSince.After(winner.typingSince) {
			winner = s
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.OperatorID, true
}

// DropConnection removes every session owned by a closed connection. A
// session that was mid-type resumes automation for its target user.
func (t *Tracker) DropConnection(connectionID string) {
	type resume struct{ userID, operatorID string }
	var resumes []resume

	t.mu.Lock()
	for operatorID, s := range t.sessions {
		if s.ConnectionID != connectionID {
			continue
		}
		wasTyping := s.Typing
		s.stopTimers()
		delete(t.sessions, operatorID)
		if wasTyping {
			resumes = append(resumes, resume{userID: s.UserID, operatorID: operatorID})
		}
	}
	t.mu.Unlock()

	for _, r := range resumes {
		t.automation.Resume(r.userID, r.operatorID)
		t.emitter.Emit(events.New(constant.EventPresenceChanged, map[string]interface{}{
			"operator_id": r.operatorID,
			"user_id":     r.userID,
			"typing":      false,
		}))
	}
}

// ReclaimDead sweeps sessions whose connection is gone. Typing sessions
// trigger exactly one automation resume each.
func (t *Tracker) ReclaimDead() int {
	type resume struct{ userID, operatorID string }
	var resumes []resume
	removed := 0

	t.mu.Lock()
	for operatorID, s := range t.sessions {
		if t.probe.IsLive(s.ConnectionID) {
			continue
		}
		wasTyping := s.Typing
		s.stopTimers()
		delete(t.sessions, operatorID)
		removed++
		if wasTyping {
			resumes = append(resumes, resume{userID: s.UserID, operatorID: operatorID})
		}
	}
	t.mu.Unlock()

	for _, r := range resumes {
		t.automation.Resume(r.userID, r.operatorID)
	}
	return removed
}

// ReclaimStale removes sessions idle beyond maxIdle whose connection is
// still alive but inactive. No resume fires for these.
func (t *Tracker) ReclaimStale(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	removed := 0

	t.mu.Lock()
	defer t.mu.Unlock()
	for operatorID, s := range t.sessions {
		if s.LastActivity.After(cutoff) {
			continue
		}
		if !t.probe.IsLive(s.ConnectionID) {
			continue // ReclaimDead handles these, with the resume cascade
		}
		s.stopTimers()
		delete(t.sessions, operatorID)
		removed++
	}
	return removed
}

// Count returns the number of tracked operator sessions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Snapshot reports session ages for the status endpoint.
func (t *Tracker) Snapshot() []map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, map[string]interface{}{
			"operator_id":  s.OperatorID,
			"user_id":      s.UserID,
			"typing":       s.Typing,
			"idle_seconds": time.Since(s.LastActivity).Seconds(),
		})
	}
	return out
}

// Shutdown cancels all resume timers and clears the session map.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for operatorID, s := range t.sessions {
		s.stopTimers()
		delete(t.sessions, operatorID)
	}
}
