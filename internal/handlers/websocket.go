package handlers

import (
	"github.com/gin-gonic/gin"

	"delivering/internal/services"
)

// ServeWS upgrades the connection and registers the client with the hub.
// Authentication happens in the middleware; the token may arrive as a query
// parameter since browsers cannot set headers on websocket upgrades.
func ServeWS(hub *services.Hub, presence *services.PresenceRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		roleStr, _ := role.(string)

		services.HandleWebSocket(hub, presence, c.Writer, c.Request, currentUserID(c), roleStr)
	}
}
