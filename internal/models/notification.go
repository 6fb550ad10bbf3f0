package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification types
const (
	NotificationOrderCreated   = "ORDER_CREATED"
	NotificationOrderAccepted  = "ORDER_ACCEPTED"
	NotificationOrderStatus    = "ORDER_STATUS"
	NotificationDriverArrival  = "DRIVER_ARRIVAL"
	NotificationPaymentUpdate  = "PAYMENT_UPDATE"
	NotificationSystemMessage  = "SYSTEM_MESSAGE"
)

// Notification is an append-only record of a delivered (or attempted)
// message. Marking as read is the only mutation.
type Notification struct {
	gorm.Model
	UserID  uint       `json:"userId" gorm:"not null;index"`
	Type    string     `json:"type" gorm:"not null"`
	Title   string     `json:"title" gorm:"not null"`
	Message string     `json:"message" gorm:"not null"`
	Data    string     `json:"data,omitempty"` // opaque JSON payload
	IsRead  bool       `json:"isRead" gorm:"not null;default:false"`
	ReadAt  *time.Time `json:"readAt,omitempty"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}
