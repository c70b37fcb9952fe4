package websocket

import (
	"encoding/json"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/handoff"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

func newConnectionID() string {
	return uuid.NewString()
}

// Client is a middleman between one websocket connection and the hub. It is
// anonymous until a valid auth frame arrives.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	ConnectionID string

	// Identity set by the auth frame; zero value until authenticated
	Identity      handoff.Identity
	Authenticated bool

	// Buffered channel of outbound messages.
	Send chan []byte
}

// inboundFrame is what clients send: an auth frame or a typing signal.
type inboundFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

func (c *Client) sendEvent(eventType string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":        eventType,
		"data":        data,
		"occurred_at": time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// readPump pumps frames from the websocket connection into the hub and the
// presence tracker.
func (c *Client) readPump() {
	defer func() {
		// On hub shutdown nobody drains unregister anymore
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected close", map[string]interface{}{
					"connection_id": c.ConnectionID,
					"error":         err.Error(),
				})
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": "malformed frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame inboundFrame) {
	switch frame.Type {
	case "auth":
		c.handleAuth(frame.Token)

	case "typing_start":
		if !c.requireOperator() {
			return
		}
		if err := c.Hub.presence.StartTyping(c.ConnectionID, c.Identity, frame.UserID); err != nil {
			c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": err.Error()})
		}

	case "typing_stop":
		if !c.requireOperator() {
			return
		}
		if err := c.Hub.presence.StopTyping(c.ConnectionID, c.Identity, frame.UserID); err != nil {
			c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": err.Error()})
		}

	default:
		c.Hub.logger.Debug("Hub", "Ignoring unknown frame type", map[string]interface{}{
			"connection_id": c.ConnectionID,
			"type":          frame.Type,
		})
	}
}

// handleAuth validates the token. Failure keeps the connection open as an
// anonymous event listener.
func (c *Client) handleAuth(token string) {
	if token == "" {
		c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": "missing token"})
		return
	}

	ident, err := c.Hub.tokens.ParseToken(token)
	if err != nil {
		c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": "invalid token"})
		return
	}

	c.Identity = ident
	c.Authenticated = true
	// Broadcast so dashboards see who came online, not just the socket itself
	c.Hub.Broadcast(constant.EventAuthenticated, map[string]interface{}{
		"connection_id": c.ConnectionID,
		"operator_id":   ident.ID,
		"role":          ident.Role,
	})
	c.Hub.logger.Info("Hub", "Connection authenticated", map[string]interface{}{
		"connection_id": c.ConnectionID,
		"operator_id":   ident.ID,
	})
}

func (c *Client) requireOperator() bool {
	if !c.Authenticated {
		c.sendEvent(constant.EventAuthFailed, map[string]interface{}{"error": "authentication required"})
		return false
	}
	return true
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued events into the same websocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
