package services

import (
	"context"
	"fmt"
	"log"
	"math"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

// PlatformFeeRate is the share of each payment retained by the platform;
// the remainder goes to the driver.
const PlatformFeeRate = 0.20

// PaymentProvider is the external payment gateway: hold funds at
// authorization, settle at capture, return on refund.
type PaymentProvider interface {
	Name() string
	Authorize(ctx context.Context, amountCents int64, currency, paymentMethod string) (string, error)
	Capture(ctx context.Context, providerTxID string, amountCents int64) error
	Refund(ctx context.Context, providerTxID string) error
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByOrder(ctx context.Context, orderID uint) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
}

// OrderStatusUpdater is the slice of the lifecycle the payment service uses
// to keep order status in step with payment progress.
type OrderStatusUpdater interface {
	Get(ctx context.Context, orderID uint) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uint, target string, driverID *uint) (*models.Order, error)
}

// PaymentService runs the payment flow for orders: create a pending record,
// authorize a hold, capture after delivery, refund on cancellation.
type PaymentService struct {
	payments PaymentStore
	orders   OrderStatusUpdater
	provider PaymentProvider
	notifier *Notifier
}

func NewPaymentService(payments PaymentStore, orders OrderStatusUpdater, provider PaymentProvider, notifier *Notifier) *PaymentService {
	return &PaymentService{payments: payments, orders: orders, provider: provider, notifier: notifier}
}

// Create opens a PENDING payment for the order. One payment per order; a
// second create fails on the unique index.
func (s *PaymentService) Create(ctx context.Context, orderID uint, currency, paymentMethod string) (*models.Payment, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return nil, errs.InvalidState(fmt.Sprintf("order %d is %s", orderID, order.Status))
	}

	fee := order.Price * PlatformFeeRate
	payment := &models.Payment{
		OrderID:       orderID,
		Amount:        order.Price,
		Currency:      currency,
		Provider:      s.provider.Name(),
		PaymentMethod: paymentMethod,
		Status:        models.PaymentStatusPending,
		PlatformFee:   fee,
		DriverAmount:  order.Price - fee,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Authorize places the hold with the provider and records it. The order
// moves to PAYMENT_AUTHORIZED when its current status allows it.
func (s *PaymentService) Authorize(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, errs.InvalidState(fmt.Sprintf("payment %d is %s, not %s", paymentID, payment.Status, models.PaymentStatusPending))
	}

	txID, err := s.provider.Authorize(ctx, amountCents(payment.Amount), payment.Currency, payment.PaymentMethod)
	if err != nil {
		payment.Status = models.PaymentStatusFailed
		if updateErr := s.payments.Update(ctx, payment); updateErr != nil {
			log.Printf("Failed to record failed payment %d: %v", payment.ID, updateErr)
		}
		return nil, err
	}

	payment.Status = models.PaymentStatusAuthorized
	payment.ProviderTxID = txID
	payment.AuthorizationID = txID
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.syncOrderStatus(ctx, payment.OrderID, models.OrderStatusPaymentAuthorized)
	s.notifyPayment(ctx, payment, "Payment Authorized", "Your payment hold was placed successfully")
	return payment, nil
}

// Capture settles the hold after delivery and marks the order PAID.
func (s *PaymentService) Capture(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusAuthorized {
		return nil, errs.InvalidState(fmt.Sprintf("payment %d is %s, not %s", paymentID, payment.Status, models.PaymentStatusAuthorized))
	}

	if err := s.provider.Capture(ctx, payment.ProviderTxID, amountCents(payment.Amount)); err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusCaptured
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.syncOrderStatus(ctx, payment.OrderID, models.OrderStatusPaid)
	s.notifyPayment(ctx, payment, "Payment Captured", "Your payment was completed")
	return payment, nil
}

// Refund returns the funds for a captured or authorized payment.
func (s *PaymentService) Refund(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusAuthorized && payment.Status != models.PaymentStatusCaptured {
		return nil, errs.InvalidState(fmt.Sprintf("payment %d is %s, cannot refund", paymentID, payment.Status))
	}

	if err := s.provider.Refund(ctx, payment.ProviderTxID); err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusRefunded
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.notifyPayment(ctx, payment, "Payment Refunded", "Your payment was refunded")
	return payment, nil
}

// GetByOrder returns the payment attached to an order.
func (s *PaymentService) GetByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	return s.payments.FindByOrder(ctx, orderID)
}

// syncOrderStatus moves the order along with the payment when the state
// machine allows it. Payments on orders in other states keep their own
// status only.
func (s *PaymentService) syncOrderStatus(ctx context.Context, orderID uint, target string) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		log.Printf("Failed to load order %d for payment status sync: %v", orderID, err)
		return
	}
	if !CanTransition(order.Status, target) {
		return
	}
	if _, err := s.orders.UpdateStatus(ctx, orderID, target, nil); err != nil {
		log.Printf("Failed to move order %d to %s: %v", orderID, target, err)
	}
}

func (s *PaymentService) notifyPayment(ctx context.Context, payment *models.Payment, title, message string) {
	if s.notifier == nil {
		return
	}
	order, err := s.orders.Get(ctx, payment.OrderID)
	if err != nil {
		log.Printf("Failed to load order %d for payment notification: %v", payment.OrderID, err)
		return
	}
	err = s.notifier.Send(ctx, NotificationInput{
		UserID:   order.UserID,
		Type:     models.NotificationPaymentUpdate,
		Title:    title,
		Message:  message,
		Priority: PriorityNormal,
		Data: map[string]string{
			"orderId":   fmt.Sprintf("%d", payment.OrderID),
			"paymentId": fmt.Sprintf("%d", payment.ID),
			"status":    payment.Status,
		},
	})
	if err != nil {
		log.Printf("Failed to send payment notification for order %d: %v", payment.OrderID, err)
	}
}

func amountCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
