package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"delivering/internal/models"
	"delivering/internal/repository"
	"delivering/internal/services"
)

type SendNotificationInput struct {
	UserID   uint              `json:"userId" binding:"required"`
	Type     string            `json:"type" binding:"required"`
	Title    string            `json:"title" binding:"required"`
	Message  string            `json:"message" binding:"required"`
	Data     map[string]string `json:"data"`
	Priority string            `json:"priority" binding:"omitempty,oneof=high normal"`
}

type SendBatchInput struct {
	UserIDs  []uint            `json:"userIds" binding:"required,min=1"`
	Type     string            `json:"type" binding:"required"`
	Title    string            `json:"title" binding:"required"`
	Message  string            `json:"message" binding:"required"`
	Data     map[string]string `json:"data"`
	Priority string            `json:"priority" binding:"omitempty,oneof=high normal"`
}

type RegisterFCMTokenInput struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=ios android web"`
}

type BroadcastInput struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func SendNotification(notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input SendNotificationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		err := notifier.Send(c.Request.Context(), services.NotificationInput{
			UserID:   input.UserID,
			Type:     input.Type,
			Title:    input.Title,
			Message:  input.Message,
			Data:     input.Data,
			Priority: input.Priority,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Notification sent"})
	}
}

// SendBatchNotification fans out to every recipient; partial failure
// returns 200 with per-recipient counts, never an error.
func SendBatchNotification(notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input SendBatchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		inputs := make([]services.NotificationInput, 0, len(input.UserIDs))
		for _, userID := range input.UserIDs {
			inputs = append(inputs, services.NotificationInput{
				UserID:   userID,
				Type:     input.Type,
				Title:    input.Title,
				Message:  input.Message,
				Data:     input.Data,
				Priority: input.Priority,
			})
		}

		result := notifier.SendBatch(c.Request.Context(), inputs)
		c.JSON(200, gin.H{"result": result})
	}
}

func ListNotifications(notifications *repository.NotificationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		items, total, err := notifications.ListByUser(c.Request.Context(), currentUserID(c), page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{
			"notifications": items,
			"total":         total,
			"page":          page,
			"limit":         limit,
		})
	}
}

// ListUnreadNotifications replays recent unread notifications, for clients
// catching up after a reconnect.
func ListUnreadNotifications(notifications *repository.NotificationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := notifications.UnreadRecent(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"notifications": items})
	}
}

func MarkNotificationRead(notifications *repository.NotificationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		notificationID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		if err := notifications.MarkAsRead(c.Request.Context(), notificationID, currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Notification marked as read"})
	}
}

// RegisterFCMToken stores the caller's device token for push delivery.
// Driver tokens also join the topic used for fleet-wide broadcasts.
func RegisterFCMToken(presence *services.PresenceRegistry, push *services.FirebasePush) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterFCMTokenInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := presence.SaveFCMToken(c.Request.Context(), currentUserID(c), input.Token, input.Platform); err != nil {
			respondError(c, err)
			return
		}

		if c.GetString("role") == models.RoleDriver {
			if err := push.SubscribeToTopic(c.Request.Context(), []string{input.Token}, "drivers"); err != nil {
				log.Printf("Failed to subscribe driver %d to drivers topic: %v", currentUserID(c), err)
			}
		}
		c.JSON(200, gin.H{"message": "FCM token registered"})
	}
}

func RemoveFCMToken(presence *services.PresenceRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := presence.DeleteFCMToken(c.Request.Context(), currentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "FCM token removed"})
	}
}

// BroadcastToDrivers pushes an announcement to every driver, connected or
// not.
func BroadcastToDrivers(notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input BroadcastInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := notifier.BroadcastToDrivers(c.Request.Context(), input.Title, input.Message); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Broadcast sent"})
	}
}
