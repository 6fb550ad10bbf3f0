package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

type memPaymentStore struct {
	payments map[uint]*models.Payment
	nextID   uint
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: make(map[uint]*models.Payment), nextID: 1}
}

func (s *memPaymentStore) Create(ctx context.Context, p *models.Payment) error {
	for _, existing := range s.payments {
		if existing.OrderID == p.OrderID {
			return errors.New("duplicate order payment")
		}
	}
	p.ID = s.nextID
	s.nextID++
	s.payments[p.ID] = p
	return nil
}

func (s *memPaymentStore) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, errs.NotFound("payment", id)
	}
	clone := *p
	return &clone, nil
}

func (s *memPaymentStore) FindByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.OrderID == orderID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, errs.NotFound("payment for order", orderID)
}

func (s *memPaymentStore) Update(ctx context.Context, p *models.Payment) error {
	clone := *p
	s.payments[p.ID] = &clone
	return nil
}

type stubProvider struct {
	authorizeErr error
	captured     []string
	refunded     []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Authorize(ctx context.Context, amountCents int64, currency, paymentMethod string) (string, error) {
	if p.authorizeErr != nil {
		return "", p.authorizeErr
	}
	return "pi_test_123", nil
}

func (p *stubProvider) Capture(ctx context.Context, providerTxID string, amountCents int64) error {
	p.captured = append(p.captured, providerTxID)
	return nil
}

func (p *stubProvider) Refund(ctx context.Context, providerTxID string) error {
	p.refunded = append(p.refunded, providerTxID)
	return nil
}

type stubOrderUpdater struct {
	orders map[uint]*models.Order
}

func (s *stubOrderUpdater) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, errs.NotFound("order", orderID)
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrderUpdater) UpdateStatus(ctx context.Context, orderID uint, target string, driverID *uint) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, errs.NotFound("order", orderID)
	}
	order.Status = target
	clone := *order
	return &clone, nil
}

func newPaymentFixture(orderStatus string) (*PaymentService, *memPaymentStore, *stubOrderUpdater, *stubProvider) {
	order := &models.Order{UserID: 1, Status: orderStatus, Price: 50}
	order.ID = 1
	orders := &stubOrderUpdater{orders: map[uint]*models.Order{1: order}}
	store := newMemPaymentStore()
	provider := &stubProvider{}
	service := NewPaymentService(store, orders, provider, nil)
	return service, store, orders, provider
}

func TestPaymentCreate(t *testing.T) {
	t.Run("splits platform fee", func(t *testing.T) {
		service, _, _, _ := newPaymentFixture(models.OrderStatusPriceEstimated)

		payment, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, payment.Status)
		assert.InDelta(t, 10.0, payment.PlatformFee, 1e-9)
		assert.InDelta(t, 40.0, payment.DriverAmount, 1e-9)
	})

	t.Run("terminal order rejected", func(t *testing.T) {
		service, _, _, _ := newPaymentFixture(models.OrderStatusCanceled)
		_, err := service.Create(context.Background(), 1, "USD", "pm_card")
		assert.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("missing order", func(t *testing.T) {
		service, _, _, _ := newPaymentFixture(models.OrderStatusCreated)
		_, err := service.Create(context.Background(), 99, "USD", "pm_card")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestPaymentAuthorize(t *testing.T) {
	t.Run("records hold and advances order", func(t *testing.T) {
		service, _, orders, _ := newPaymentFixture(models.OrderStatusPriceEstimated)
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)

		payment, err := service.Authorize(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusAuthorized, payment.Status)
		assert.Equal(t, "pi_test_123", payment.ProviderTxID)
		assert.Equal(t, models.OrderStatusPaymentAuthorized, orders.orders[1].Status)
	})

	t.Run("order status untouched when the table forbids the move", func(t *testing.T) {
		service, _, orders, _ := newPaymentFixture(models.OrderStatusSearchingDriver)
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)

		_, err = service.Authorize(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusSearchingDriver, orders.orders[1].Status)
	})

	t.Run("provider failure marks payment failed", func(t *testing.T) {
		service, store, _, provider := newPaymentFixture(models.OrderStatusPriceEstimated)
		provider.authorizeErr = errs.External("stripe authorize", errors.New("card declined"))
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)

		_, err = service.Authorize(context.Background(), created.ID)
		assert.ErrorIs(t, err, errs.ErrExternalService)

		stored, err := store.FindByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	})

	t.Run("only pending payments can authorize", func(t *testing.T) {
		service, _, _, _ := newPaymentFixture(models.OrderStatusPriceEstimated)
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)
		_, err = service.Authorize(context.Background(), created.ID)
		require.NoError(t, err)

		_, err = service.Authorize(context.Background(), created.ID)
		assert.ErrorIs(t, err, errs.ErrInvalidState)
	})
}

func TestPaymentCapture(t *testing.T) {
	t.Run("settles the hold and marks the order paid", func(t *testing.T) {
		service, _, orders, provider := newPaymentFixture(models.OrderStatusPriceEstimated)
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)
		_, err = service.Authorize(context.Background(), created.ID)
		require.NoError(t, err)

		orders.orders[1].Status = models.OrderStatusDelivered

		payment, err := service.Capture(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCaptured, payment.Status)
		assert.Equal(t, []string{"pi_test_123"}, provider.captured)
		assert.Equal(t, models.OrderStatusPaid, orders.orders[1].Status)
	})

	t.Run("pending payment cannot capture", func(t *testing.T) {
		service, _, _, _ := newPaymentFixture(models.OrderStatusPriceEstimated)
		created, err := service.Create(context.Background(), 1, "USD", "pm_card")
		require.NoError(t, err)

		_, err = service.Capture(context.Background(), created.ID)
		assert.ErrorIs(t, err, errs.ErrInvalidState)
	})
}

func TestPaymentRefund(t *testing.T) {
	service, _, _, provider := newPaymentFixture(models.OrderStatusPriceEstimated)
	created, err := service.Create(context.Background(), 1, "USD", "pm_card")
	require.NoError(t, err)
	_, err = service.Authorize(context.Background(), created.ID)
	require.NoError(t, err)

	payment, err := service.Refund(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, []string{"pi_test_123"}, provider.refunded)

	_, err = service.Refund(context.Background(), created.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}
