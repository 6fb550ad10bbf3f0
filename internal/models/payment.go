package models

import "gorm.io/gorm"

// PaymentStatus constants
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusAuthorized = "AUTHORIZED"
	PaymentStatusCaptured   = "CAPTURED"
	PaymentStatusRefunded   = "REFUNDED"
	PaymentStatusFailed     = "FAILED"
)

// Payment links an order to a provider-side transaction. An order with a
// payment row is never deleted.
type Payment struct {
	gorm.Model
	OrderID         uint    `json:"orderId" gorm:"not null;uniqueIndex"`
	Amount          float64 `json:"amount" gorm:"not null"`
	Currency        string  `json:"currency" gorm:"not null;default:'USD'"`
	Provider        string  `json:"provider" gorm:"not null"`
	PaymentMethod   string  `json:"paymentMethod"`
	Status          string  `json:"status" gorm:"not null;default:'PENDING'"`
	ProviderTxID    string  `json:"providerTxId"`
	AuthorizationID string  `json:"authorizationId"`
	PlatformFee     float64 `json:"platformFee"`
	DriverAmount    float64 `json:"driverAmount"`
	Order           *Order  `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}
