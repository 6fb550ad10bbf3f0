package handlers

import (
	"github.com/gin-gonic/gin"

	"delivering/internal/services"
)

// Health reports process liveness along with the number of websocket
// sessions held by this instance.
func Health(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"connections": hub.ConnectedClients(),
		})
	}
}

// GetUserPresence reports whether a user holds a live realtime session,
// with the session record when they do.
func GetUserPresence(presence *services.PresenceRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		online, err := presence.IsOnline(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !online {
			c.JSON(200, gin.H{"online": false})
			return
		}

		record, err := presence.GetConnection(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"online": true, "connection": record})
	}
}
