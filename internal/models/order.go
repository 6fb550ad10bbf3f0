package models

import "gorm.io/gorm"

// Order lifecycle statuses. Transitions are enforced by services.OrderLifecycle.
const (
	OrderStatusCreated           = "CREATED"
	OrderStatusPriceEstimated    = "PRICE_ESTIMATED"
	OrderStatusPaymentAuthorized = "PAYMENT_AUTHORIZED"
	OrderStatusSearchingDriver   = "SEARCHING_DRIVER"
	OrderStatusDriverAssigned    = "DRIVER_ASSIGNED"
	OrderStatusInProgress        = "IN_PROGRESS"
	OrderStatusDelivered         = "DELIVERED"
	OrderStatusPaid              = "PAID"
	OrderStatusCanceled          = "CANCELED"
)

// Order represents a delivery order. DriverID stays nil until a driver
// accepts; it is set together with the DRIVER_ASSIGNED transition and never
// cleared afterwards.
type Order struct {
	gorm.Model
	UserID       uint    `json:"userId" gorm:"not null;index"`
	DriverID     *uint   `json:"driverId,omitempty" gorm:"null"`
	Status       string  `json:"status" gorm:"not null;default:'CREATED';index"`
	PickupLat    float64 `json:"pickupLat" gorm:"not null"`
	PickupLng    float64 `json:"pickupLng" gorm:"not null"`
	DropoffLat   float64 `json:"dropoffLat" gorm:"not null"`
	DropoffLng   float64 `json:"dropoffLng" gorm:"not null"`
	Price        float64 `json:"price" gorm:"not null"`
	EstimatedEta int     `json:"estimatedEta"` // minutes
	User         *User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Driver       *Driver `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// HasDriver reports whether the order has been claimed.
func (o *Order) HasDriver() bool {
	return o.DriverID != nil
}

// Terminal reports whether no further transitions are allowed.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusCanceled
}
