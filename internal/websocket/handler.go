package websocket

import (
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeChat runs one chat socket until the peer disconnects. The read loop
// stays on the handler goroutine, as fiber closes the connection when it returns.
func ServeChat(hub *Hub, c *websocket.Conn, userID uuid.UUID, chat service.IChatService, log logger.ILogger) {
	client := newClient(hub, c, userID, chat, log)
	if !hub.add(client) {
		return
	}

	go client.writePump()
	client.readPump()
}
