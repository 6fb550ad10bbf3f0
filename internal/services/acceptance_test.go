package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

// casOrderStore mimics the conditional-update semantics of the real store:
// the claim only succeeds against the current committed state, under lock.
type casOrderStore struct {
	mu      sync.Mutex
	orders  map[uint]*models.Order
	drivers map[uint]*models.Driver
}

func newCASOrderStore() *casOrderStore {
	return &casOrderStore{
		orders:  make(map[uint]*models.Order),
		drivers: make(map[uint]*models.Driver),
	}
}

func (s *casOrderStore) addOrder(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

func (s *casOrderStore) addDriver(driver *models.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[driver.ID] = driver
}

func (s *casOrderStore) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, errs.NotFound("order", id)
	}
	clone := *order
	return &clone, nil
}

func (s *casOrderStore) AssignDriver(ctx context.Context, orderID, driverID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != models.OrderStatusSearchingDriver || order.DriverID != nil {
		return errs.Conflict("order already accepted or not searching")
	}
	driver, ok := s.drivers[driverID]
	if !ok || driver.Status != models.DriverStatusAvailable {
		return errs.ErrDriverUnavailable
	}

	order.Status = models.OrderStatusDriverAssigned
	order.DriverID = &driverID
	driver.Status = models.DriverStatusBusy
	return nil
}

func (s *casOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *casOrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *casOrderStore) FindByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *casOrderStore) FindPending(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == models.OrderStatusSearchingDriver {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *casOrderStore) UpdateStatus(ctx context.Context, id uint, status string, driverID *uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, errs.NotFound("order", id)
	}
	order.Status = status
	if driverID != nil {
		order.DriverID = driverID
	}
	if status == models.OrderStatusCanceled {
		order.DriverID = nil
	}
	clone := *order
	return &clone, nil
}

func (s *casOrderStore) PromoteIfStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (s *casOrderStore) Remove(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return errs.NotFound("order", id)
	}
	delete(s.orders, id)
	return nil
}

func (s *casOrderStore) ReleaseIfBusy(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, ok := s.drivers[id]
	if !ok || driver.Status != models.DriverStatusBusy {
		return false, nil
	}
	driver.Status = models.DriverStatusAvailable
	return true, nil
}

func (s *casOrderStore) driverStatus(t *testing.T, id uint) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, ok := s.drivers[id]
	require.True(t, ok)
	return driver.Status
}

type stubDriverAccessor struct {
	store *casOrderStore
}

func (a *stubDriverAccessor) FindByID(ctx context.Context, id uint) (*models.Driver, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	driver, ok := a.store.drivers[id]
	if !ok {
		return nil, errs.NotFound("driver", id)
	}
	clone := *driver
	return &clone, nil
}

func searchingOrder(id uint) *models.Order {
	order := &models.Order{Status: models.OrderStatusSearchingDriver, UserID: 100}
	order.ID = id
	return order
}

func availableDriver(id uint) *models.Driver {
	driver := &models.Driver{Status: models.DriverStatusAvailable, UserID: 200 + id}
	driver.ID = id
	return driver
}

func newTestCoordinator(store *casOrderStore) (*AcceptanceCoordinator, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewAcceptanceCoordinator(store, &stubDriverAccessor{store: store}, notifier), notifier
}

func TestAcceptValidation(t *testing.T) {
	t.Run("order not found", func(t *testing.T) {
		coordinator, _ := newTestCoordinator(newCASOrderStore())
		_, err := coordinator.Accept(context.Background(), 1, 1)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("order not searching", func(t *testing.T) {
		store := newCASOrderStore()
		order := searchingOrder(1)
		order.Status = models.OrderStatusCreated
		store.addOrder(order)
		store.addDriver(availableDriver(1))

		coordinator, _ := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 1)
		assert.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("order already claimed", func(t *testing.T) {
		store := newCASOrderStore()
		order := searchingOrder(1)
		claimed := uint(9)
		order.DriverID = &claimed
		store.addOrder(order)
		store.addDriver(availableDriver(1))

		coordinator, _ := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 1)
		assert.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("driver not found", func(t *testing.T) {
		store := newCASOrderStore()
		store.addOrder(searchingOrder(1))

		coordinator, _ := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 7)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("driver not available", func(t *testing.T) {
		store := newCASOrderStore()
		store.addOrder(searchingOrder(1))
		driver := availableDriver(1)
		driver.Status = models.DriverStatusOffline
		store.addDriver(driver)

		coordinator, _ := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 1)
		assert.ErrorIs(t, err, errs.ErrDriverUnavailable)
	})
}

func TestAcceptAssignsAndNotifies(t *testing.T) {
	store := newCASOrderStore()
	store.addOrder(searchingOrder(1))
	store.addDriver(availableDriver(5))

	coordinator, notifier := newTestCoordinator(store)
	order, err := coordinator.Accept(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusDriverAssigned, order.Status)
	require.NotNil(t, order.DriverID)
	assert.Equal(t, uint(5), *order.DriverID)

	driver, err := (&stubDriverAccessor{store: store}).FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.DriverStatusBusy, driver.Status)

	assert.Equal(t, []uint{100}, notifier.acceptedNotices)
}

// A driver who completes a delivery must come back as AVAILABLE, and a
// cancellation mid-delivery must both free the driver and drop the
// assignment from the order.
func TestDriverFreedAfterOrderFinishes(t *testing.T) {
	t.Run("delivery", func(t *testing.T) {
		store := newCASOrderStore()
		store.addOrder(searchingOrder(1))
		store.addDriver(availableDriver(5))

		coordinator, notifier := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 5)
		require.NoError(t, err)
		require.Equal(t, models.DriverStatusBusy, store.driverStatus(t, 5))

		lifecycle := NewOrderLifecycle(store, store, &stubMatcher{}, notifier, quietPolicy())
		_, err = lifecycle.UpdateStatus(context.Background(), 1, models.OrderStatusInProgress, nil)
		require.NoError(t, err)
		assert.Equal(t, models.DriverStatusBusy, store.driverStatus(t, 5))

		order, err := lifecycle.UpdateStatus(context.Background(), 1, models.OrderStatusDelivered, nil)
		require.NoError(t, err)

		assert.Equal(t, models.DriverStatusAvailable, store.driverStatus(t, 5))
		require.NotNil(t, order.DriverID)
		assert.Equal(t, uint(5), *order.DriverID)
	})

	t.Run("cancellation", func(t *testing.T) {
		store := newCASOrderStore()
		store.addOrder(searchingOrder(1))
		store.addDriver(availableDriver(5))

		coordinator, notifier := newTestCoordinator(store)
		_, err := coordinator.Accept(context.Background(), 1, 5)
		require.NoError(t, err)

		lifecycle := NewOrderLifecycle(store, store, &stubMatcher{}, notifier, quietPolicy())
		order, err := lifecycle.UpdateStatus(context.Background(), 1, models.OrderStatusCanceled, nil)
		require.NoError(t, err)

		assert.Equal(t, models.DriverStatusAvailable, store.driverStatus(t, 5))
		assert.Nil(t, order.DriverID)
	})
}

func TestConcurrentAcceptsExactlyOneWins(t *testing.T) {
	for run := 0; run < 20; run++ {
		store := newCASOrderStore()
		store.addOrder(searchingOrder(1))
		store.addDriver(availableDriver(1))
		store.addDriver(availableDriver(2))

		coordinator, _ := newTestCoordinator(store)

		var wg sync.WaitGroup
		errsCh := make(chan error, 2)
		for _, driverID := range []uint{1, 2} {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				_, err := coordinator.Accept(context.Background(), 1, id)
				errsCh <- err
			}(driverID)
		}
		wg.Wait()
		close(errsCh)

		var wins, losses int
		for err := range errsCh {
			if err == nil {
				wins++
				continue
			}
			losses++
			lost := errors.Is(err, errs.ErrConflict) ||
				errors.Is(err, errs.ErrDriverUnavailable) ||
				errors.Is(err, errs.ErrInvalidState)
			assert.True(t, lost, "unexpected loser error: %v", err)
		}
		assert.Equal(t, 1, wins, "run %d", run)
		assert.Equal(t, 1, losses, "run %d", run)

		order, err := store.FindByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusDriverAssigned, order.Status)
		require.NotNil(t, order.DriverID)
	}
}
