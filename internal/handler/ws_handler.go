package handler

import (
	"chat-handoff-be/internal/pkg/logger"
	internalWS "chat-handoff-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WsHandler exposes the realtime event socket. Connections start anonymous
// and may authenticate in-band with an auth frame; operators must do so
// before sending typing signals.
type WsHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewWsHandler(hub *internalWS.Hub, log logger.ILogger) *WsHandler {
	return &WsHandler{hub: hub, logger: log}
}

// ServeWs handles websocket requests from the peer.
func (h *WsHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("WsHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
			internalWS.ServeWs(h.hub, conn)
			h.logger.Info("WsHandler", "WebSocket session ended", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the websocket route.
func (h *WsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
