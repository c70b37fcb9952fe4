package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/handoff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type stubTokens struct {
	ident handoff.Identity
	err   error
}

func (s *stubTokens) ParseToken(token string) (handoff.Identity, error) {
	return s.ident, s.err
}

// recordingPresence captures the drop cascade from the hub.
type recordingPresence struct {
	mu      sync.Mutex
	dropped []string
}

func (p *recordingPresence) StartTyping(connectionID string, ident handoff.Identity, userID string) error {
	return nil
}

func (p *recordingPresence) StopTyping(connectionID string, ident handoff.Identity, userID string) error {
	return nil
}

func (p *recordingPresence) DropConnection(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, connectionID)
}

func (p *recordingPresence) droppedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dropped)
}

func newTestHub(t *testing.T, tokens TokenParser) (*Hub, *recordingPresence) {
	t.Helper()
	if tokens == nil {
		tokens = &stubTokens{}
	}
	presence := &recordingPresence{}
	h := NewHub(nil, tokens, nopLogger{})
	h.SetPresence(presence)
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h, presence
}

func newTestClient(h *Hub, buffer int) *Client {
	return &Client{
		Hub:          h,
		ConnectionID: newConnectionID(),
		Send:         make(chan []byte, buffer),
	}
}

// awaitEvent drains a client's send queue until the wanted event arrives.
func awaitEvent(t *testing.T, c *Client, eventType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case raw, ok := <-c.Send:
			require.True(t, ok, "send channel closed while waiting for %s", eventType)
			var envelope struct {
				Type string                 `json:"type"`
				Data map[string]interface{} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &envelope))
			if envelope.Type == eventType {
				return envelope.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestRegisterBroadcastsConnectionCount(t *testing.T) {
	h, _ := newTestHub(t, nil)

	first := newTestClient(h, 8)
	h.register <- first
	data := awaitEvent(t, first, constant.EventConnected)
	assert.Equal(t, float64(1), data["total_connections"])

	// An existing client sees the updated count, not just the new socket
	second := newTestClient(h, 8)
	h.register <- second
	data = awaitEvent(t, first, constant.EventConnected)
	assert.Equal(t, float64(2), data["total_connections"])
	assert.Equal(t, second.ConnectionID, data["connection_id"])
}

func TestAuthSuccessIsBroadcastToAllClients(t *testing.T) {
	tokens := &stubTokens{ident: handoff.Identity{ID: "op-1", DisplayName: "First Operator", Role: "operator"}}
	h, _ := newTestHub(t, tokens)

	watcher := newTestClient(h, 8)
	h.register <- watcher
	operator := newTestClient(h, 8)
	h.register <- operator

	operator.handleAuth("valid-token")
	assert.True(t, operator.Authenticated)

	data := awaitEvent(t, watcher, constant.EventAuthenticated)
	assert.Equal(t, "op-1", data["operator_id"])
	assert.Equal(t, operator.ConnectionID, data["connection_id"])
}

func TestSlowClientIsDroppedWithoutBlockingTheHub(t *testing.T) {
	h, presence := newTestHub(t, nil)

	// Buffer of one: its own connected event fills it, every later broadcast
	// overflows
	slow := newTestClient(h, 1)
	h.register <- slow

	healthy := newTestClient(h, 16)
	h.register <- healthy

	// The overflow during the register broadcast unregisters the slow client
	// through the hub's own loop; a blocked hub would never get here
	data := awaitEvent(t, healthy, constant.EventDisconnected)
	assert.Equal(t, slow.ConnectionID, data["connection_id"])

	assert.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return presence.droppedCount() == 1 }, time.Second, time.Millisecond)

	// The hub keeps serving registrations afterwards
	late := newTestClient(h, 8)
	h.register <- late
	awaitEvent(t, late, constant.EventConnected)
}

func TestShutdownClosesTrackedConnections(t *testing.T) {
	h, _ := newTestHub(t, nil)

	a := newTestClient(h, 8)
	h.register <- a
	awaitEvent(t, a, constant.EventConnected)

	h.Shutdown()
	assert.Equal(t, 0, h.Count())

	// Drain until the closed channel is observed
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-a.Send:
			if !ok {
				// Shutdown is idempotent
				h.Shutdown()
				return
			}
		case <-deadline:
			t.Fatal("send channel was not closed by shutdown")
		}
	}
}
