package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// TokenParser validates a bearer token into an identity. Implemented by the
// auth service.
type TokenParser interface {
	ParseToken(token string) (handoff.Identity, error)
}

// Presence is the slice of the orchestrator the hub drives on behalf of
// connected operators.
type Presence interface {
	StartTyping(connectionID string, ident handoff.Identity, userID string) error
	StopTyping(connectionID string, ident handoff.Identity, userID string) error
	DropConnection(connectionID string)
}

// Hub is the connection registry. Every socket gets a connection id at
// register time; identity is attached later by an auth frame. The hub also
// implements handoff.ConnectionProbe for the presence tracker.
type Hub struct {
	// Registered clients map: ConnectionID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	// quit stops Run and unblocks anything queueing on unregister
	quit     chan struct{}
	quitOnce sync.Once

	mu sync.RWMutex

	// Redis connection for cross-instance fanout, nil when single-instance
	rdb *redis.Client

	tokens   TokenParser
	presence Presence
	logger   logger.ILogger
}

func NewHub(rdb *redis.Client, tokens TokenParser, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		clients:    make(map[string]*Client),
		rdb:        rdb,
		tokens:     tokens,
		logger:     log,
	}
}

// SetPresence wires the orchestrator in after construction (the orchestrator
// needs the hub as its connection probe, so one side attaches late).
func (h *Hub) SetPresence(p Presence) {
	h.presence = p
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case <-h.quit:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnectionID] = client
			count := len(h.clients)
			h.mu.Unlock()

			// Every consumer sees the new count, not just the new socket
			h.Broadcast(constant.EventConnected, map[string]interface{}{
				"connection_id":     client.ConnectionID,
				"total_connections": count,
			})
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"connection_id": client.ConnectionID})

		case client := <-h.unregister:
			h.mu.Lock()
			existing, ok := h.clients[client.ConnectionID]
			if ok && existing == client {
				delete(h.clients, client.ConnectionID)
				close(client.Send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				// Removing the connection cascades into presence: any typing
				// session it owned is torn down and automation resumed.
				if h.presence != nil {
					h.presence.DropConnection(client.ConnectionID)
				}
				h.Broadcast(constant.EventDisconnected, map[string]interface{}{
					"connection_id":     client.ConnectionID,
					"total_connections": count,
				})
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"connection_id": client.ConnectionID})
			}
		}
	}
}

// Shutdown stops the hub loop and force-closes every tracked connection.
// Safe to call more than once.
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() {
		close(h.quit)

		h.mu.Lock()
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.Send)
			if client.Conn != nil {
				client.Conn.Close()
			}
		}
		h.mu.Unlock()

		h.logger.Info("Hub", "Hub shut down, connections closed", nil)
	})
}

// IsLive reports whether a connection id still maps to an open socket.
func (h *Hub) IsLive(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// Count returns the number of open connections on this instance.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans an event out to every local client and, when Redis is
// configured, to the other instances.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":        eventType,
		"data":        data,
		"occurred_at": time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to serialize broadcast", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}

	h.broadcastLocal(payload)

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"origin":  h.originID(),
			"message": json.RawMessage(payload),
		})
		h.rdb.Publish(context.Background(), constant.ClusterEventsChannel, envelope)
	}
}

func (h *Hub) broadcastLocal(payload []byte) {
	h.mu.RLock()
	var overflowed []*Client
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			overflowed = append(overflowed, client)
		}
	}
	h.mu.RUnlock()

	// A client that cannot keep up gets dropped rather than blocking the
	// rest. The requeue must not run on the hub goroutine: Run itself calls
	// Broadcast on disconnect, and a synchronous send here would deadlock it.
	for _, client := range overflowed {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"connection_id": client.ConnectionID,
		})
		go func(c *Client) {
			select {
			case h.unregister <- c:
			case <-h.quit:
			}
		}(client)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, constant.ClusterEventsChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var envelope struct {
			Origin  string          `json:"origin"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			h.logger.Warn("Hub", "Malformed cluster event", map[string]interface{}{"error": err.Error()})
			continue
		}
		// Locally-originated events already went to local clients
		if envelope.Origin == h.originID() {
			continue
		}
		h.broadcastLocal(envelope.Message)
	}
}

var hubOrigin = struct {
	once sync.Once
	id   string
}{}

func (h *Hub) originID() string {
	hubOrigin.once.Do(func() {
		hubOrigin.id = newConnectionID()
	})
	return hubOrigin.id
}
