package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"delivering/internal/models"
	"delivering/internal/repository"
	"delivering/internal/services"
)

type CreateOrderInput struct {
	PickupLat   float64 `json:"pickupLat" binding:"required"`
	PickupLng   float64 `json:"pickupLng" binding:"required"`
	DropoffLat  float64 `json:"dropoffLat" binding:"required"`
	DropoffLng  float64 `json:"dropoffLng" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	EtaOverride int     `json:"etaOverride"`
}

type UpdateOrderStatusInput struct {
	Status   string `json:"status" binding:"required"`
	DriverID *uint  `json:"driverId"`
}

func CreateOrder(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		order, err := lifecycle.Create(c.Request.Context(), services.CreateOrderInput{
			UserID:      currentUserID(c),
			PickupLat:   input.PickupLat,
			PickupLng:   input.PickupLng,
			DropoffLat:  input.DropoffLat,
			DropoffLng:  input.DropoffLng,
			Price:       input.Price,
			EtaOverride: input.EtaOverride,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{"order": order})
	}
}

func GetOrder(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		order, err := lifecycle.Get(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"order": order})
	}
}

func ListOrders(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := lifecycle.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"orders": orders})
	}
}

// ListMyOrders returns the authenticated user's own orders.
func ListMyOrders(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := lifecycle.ListByUser(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"orders": orders})
	}
}

// ListPendingOrders returns orders still waiting for a driver, for drivers
// browsing open work.
func ListPendingOrders(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := lifecycle.ListPending(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"orders": orders})
	}
}

func UpdateOrderStatus(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var input UpdateOrderStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		order, err := lifecycle.UpdateStatus(c.Request.Context(), orderID, input.Status, input.DriverID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"order": order})
	}
}

// AcceptOrder is the driver's claim on an open order. Races surface as 409.
func AcceptOrder(coordinator *services.AcceptanceCoordinator, drivers *repository.DriverRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		driver, err := drivers.FindByUserID(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}

		order, err := coordinator.Accept(c.Request.Context(), orderID, driver.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"order": order})
	}
}

func DeleteOrder(lifecycle *services.OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		if err := lifecycle.Delete(c.Request.Context(), orderID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Order deleted"})
	}
}

// FindNearbyDrivers exposes the matching query for a given point.
func FindNearbyDrivers(matcher *services.DriverMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid lat parameter"})
			return
		}
		lng, err := strconv.ParseFloat(c.Query("lng"), 64)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid lng parameter"})
			return
		}

		candidates, err := matcher.FindCandidates(c.Request.Context(), lat, lng)
		if err != nil {
			respondError(c, err)
			return
		}
		if candidates == nil {
			candidates = []models.NearestDriver{}
		}
		c.JSON(200, gin.H{"drivers": candidates})
	}
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid " + name + " parameter"})
		return 0, err
	}
	return uint(id), nil
}
