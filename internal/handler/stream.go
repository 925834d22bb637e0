package handler

import (
	"net/http"

	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type StreamHandler struct {
	hub *stream.Hub
}

func NewStreamHandler(hub *stream.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Serve upgrades and hands the socket to the hub, blocking for the life of
// the connection.
func (h *StreamHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.hub.HandleConn(ws)
}
