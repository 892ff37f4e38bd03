package handlers

import (
	"log"
	"net/http"

	"post-ingest-pipeline/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades dashboard connections and attaches them to the
// activity hub.
type WebSocketHandler struct {
	hub *service.Hub
}

// NewWebSocketHandler creates a WebSocket handler for the given hub.
func NewWebSocketHandler(hub *service.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Listen handles WebSocket connections for live activity events.
func (h *WebSocketHandler) Listen(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection to WebSocket: %v", err)
		return
	}

	h.hub.RegisterClient(conn)
}
