package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agrologix/agrologix-backend/internal/services"
)

// WebSocketHandler upgrades to the hint channel. Messages on it only tell the
// client to poll; they never carry state to apply.
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		services.HandleWebSocket(hub, c.Writer, c.Request, c.GetString("userId"), c.GetString("userType"))
	}
}
