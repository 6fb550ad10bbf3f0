package models

import "gorm.io/gorm"

// DriverStatus constants
const (
	DriverStatusOffline   = "OFFLINE"
	DriverStatusAvailable = "AVAILABLE"
	DriverStatusBusy      = "BUSY"
)

// Driver represents a driver profile linked to a user account. The current
// position lives in the location geography column (kept in sync with
// Latitude/Longitude by the repository) so nearest-driver queries run on the
// GIST index instead of scanning rows.
type Driver struct {
	gorm.Model
	UserID       uint    `json:"userId" gorm:"not null;uniqueIndex"`
	Status       string  `json:"status" gorm:"not null;default:'OFFLINE';index"`
	Latitude     float64 `json:"lat" gorm:"not null;default:0"`
	Longitude    float64 `json:"lng" gorm:"not null;default:0"`
	Phone        string  `json:"phone"`
	VehicleType  string  `json:"vehicleType"`
	LicensePlate string  `json:"licensePlate"`
	User         *User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}

// NearestDriver is one row of the radius query: a driver id plus its
// distance from the probe point in meters.
type NearestDriver struct {
	DriverID       uint    `json:"driverId"`
	UserID         uint    `json:"userId"`
	Status         string  `json:"status"`
	DistanceMeters float64 `json:"distanceMeters"`
}
