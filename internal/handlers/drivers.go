package handlers

import (
	"github.com/gin-gonic/gin"

	"delivering/internal/models"
	"delivering/internal/repository"
)

type RegisterDriverInput struct {
	Email        string  `json:"email" binding:"required,email"`
	Name         string  `json:"name" binding:"required"`
	Password     string  `json:"password" binding:"required,min=8"`
	Phone        string  `json:"phone" binding:"required"`
	VehicleType  string  `json:"vehicleType" binding:"required"`
	LicensePlate string  `json:"licensePlate" binding:"required"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type UpdateLocationInput struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

type UpdateAvailabilityInput struct {
	Status string `json:"status" binding:"required,oneof=OFFLINE AVAILABLE BUSY"`
}

// RegisterDriver creates the user account and the driver profile together.
// New drivers start OFFLINE until they report availability.
func RegisterDriver(drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterDriverInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		user := models.User{
			Email:    input.Email,
			Name:     input.Name,
			Password: input.Password,
			Role:     models.RoleDriver,
		}
		if err := user.HashPassword(); err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}

		driver := models.Driver{
			Status:       models.DriverStatusOffline,
			Latitude:     input.Latitude,
			Longitude:    input.Longitude,
			Phone:        input.Phone,
			VehicleType:  input.VehicleType,
			LicensePlate: input.LicensePlate,
		}

		if err := drivers.Create(c.Request.Context(), &user, &driver); err != nil {
			c.JSON(500, gin.H{"error": "Failed to create driver: " + err.Error()})
			return
		}

		c.JSON(201, gin.H{"driver": driver})
	}
}

func GetDriver(drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		driver, err := drivers.FindByID(c.Request.Context(), driverID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"driver": driver})
	}
}

func ListDrivers(drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := drivers.FindAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"drivers": all})
	}
}

// UpdateDriverLocation writes the authenticated driver's position. Only the
// driver updates their own location.
func UpdateDriverLocation(drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input UpdateLocationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		driver, err := drivers.FindByUserID(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}

		if err := drivers.UpdateLocation(c.Request.Context(), driver.ID, input.Latitude, input.Longitude); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Location updated"})
	}
}

// UpdateDriverAvailability flips the authenticated driver between OFFLINE
// and AVAILABLE. BUSY is owned by the acceptance flow, and the order
// lifecycle releases it again when the assigned order reaches DELIVERED or
// CANCELED; until then the driver cannot demote themselves.
func UpdateDriverAvailability(drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input UpdateAvailabilityInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		driver, err := drivers.FindByUserID(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		if driver.Status == models.DriverStatusBusy && input.Status != models.DriverStatusBusy {
			c.JSON(422, gin.H{"error": "Cannot change availability while on an active order"})
			return
		}

		if err := drivers.UpdateStatus(c.Request.Context(), driver.ID, input.Status); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Availability updated", "status": input.Status})
	}
}
