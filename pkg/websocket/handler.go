package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler exposes the hub over HTTP.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes wires the websocket routes onto the engine.
func RegisterRoutes(r *gin.Engine, handler *Handler) {
	r.GET(RouteWebSocket, handler.HandleWebSocket)
	r.GET(RouteWebSocketStats, handler.GetStats)
	r.GET(RouteWebSocketHealth, handler.HealthCheck)
}

// HandleWebSocket upgrades the connection. The user identity rides on the
// handshake query; a missing userId is accepted and leaves the connection
// unbound.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.Query("userId")
	HandleWebSocket(h.hub, c.Writer, c.Request, userID)
}

// GetStats reports connection and presence counts.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections": h.hub.GetConnectionCount(),
		"online_users":      h.hub.OnlineUsers(),
		"timestamp":         time.Now().Unix(),
	})
}

// HealthCheck reports hub liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
