package handoff

import (
	"context"
	"sync"
	"time"

	"chat-handoff-be/internal/config"
	"chat-handoff-be/pkg/events"
)

// nopLogger keeps component logging out of test output.
type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) typesSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recordingEmitter) count(eventType string) int {
	n := 0
	for _, seen := range r.typesSeen() {
		if seen == eventType {
			n++
		}
	}
	return n
}

// stubProbe marks every connection live unless listed dead.
type stubProbe struct {
	mu   sync.Mutex
	dead map[string]bool
}

func (p *stubProbe) IsLive(connectionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead[connectionID]
}

func (p *stubProbe) kill(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead == nil {
		p.dead = make(map[string]bool)
	}
	p.dead[connectionID] = true
}

// stubAutomation records pause/resume calls from the tracker.
type stubAutomation struct {
	mu      sync.Mutex
	paused  []string
	resumed []string
}

func (a *stubAutomation) Pause(userID, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = append(a.paused, userID)
}

func (a *stubAutomation) Resume(userID, operatorID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumed = append(a.resumed, userID)
	return true
}

func (a *stubAutomation) resumeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.resumed)
}

func (a *stubAutomation) pauseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.paused)
}

// stubPresence drives the ledger's typing check.
type stubPresence struct {
	mu     sync.Mutex
	typist string
}

func (p *stubPresence) ActiveTypist(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typist, p.typist != ""
}

func (p *stubPresence) setTypist(operatorID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typist = operatorID
}

// stubDeliverer records deliveries and can be told to fail.
type stubDeliverer struct {
	mu        sync.Mutex
	delivered []ReplyPayload
	fail      error
}

func (d *stubDeliverer) DeliverToUser(ctx context.Context, userID string, reply ReplyPayload, credential string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.delivered = append(d.delivered, reply)
	return nil
}

func (d *stubDeliverer) deliveredCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

// stubStore records persisted messages.
type stubStore struct {
	mu       sync.Mutex
	messages []string // "role:content"
}

func (s *stubStore) PersistMessage(ctx context.Context, userID, role, content string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, role+":"+content)
	return nil
}

func (s *stubStore) persistedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func testConfig() *RuntimeConfig {
	return NewRuntimeConfig(config.OrchestratorConfig{
		AiProcessingTimeout: 200 * time.Millisecond,
		TypingTimeout:       100 * time.Millisecond,
		ResumeDelay:         30 * time.Millisecond,
		AdminReviewDelay:    40 * time.Millisecond,
		ReviewRequired:      true,
		AutoSendEnabled:     true,
		ReclaimInterval:     time.Minute,
		DedupCacheTTL:       time.Minute,
	})
}

func operatorIdent(id string) Identity {
	return Identity{ID: id, DisplayName: "Operator " + id, Role: "operator"}
}
