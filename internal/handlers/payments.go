package handlers

import (
	"github.com/gin-gonic/gin"

	"delivering/internal/services"
)

type CreatePaymentInput struct {
	OrderID       uint   `json:"orderId" binding:"required"`
	Currency      string `json:"currency" binding:"required,len=3"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

func CreatePayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreatePaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		payment, err := payments.Create(c.Request.Context(), input.OrderID, input.Currency, input.PaymentMethod)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, gin.H{"payment": payment})
	}
}

func AuthorizePayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		payment, err := payments.Authorize(c.Request.Context(), paymentID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"payment": payment})
	}
}

func CapturePayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		payment, err := payments.Capture(c.Request.Context(), paymentID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"payment": payment})
	}
}

func RefundPayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		payment, err := payments.Refund(c.Request.Context(), paymentID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"payment": payment})
	}
}

// GetOrderPayment returns the payment attached to an order.
func GetOrderPayment(payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		payment, err := payments.GetByOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"payment": payment})
	}
}
