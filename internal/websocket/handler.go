package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a new connection to the hub and runs its pumps. The
// connection starts anonymous; identity arrives later in an auth frame.
func ServeWs(hub *Hub, c *websocket.Conn) {
	client := &Client{
		Hub:          hub,
		Conn:         c,
		ConnectionID: newConnectionID(),
		Send:         make(chan []byte, 256),
	}
	select {
	case client.Hub.register <- client:
	case <-client.Hub.quit:
		c.Close()
		return
	}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
