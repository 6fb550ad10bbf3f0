package services

import (
	"context"
	"log"
	"sync"
	"time"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
	"delivering/pkg/utils"
)

// orderTransitions is the allowed state machine. Absent source statuses
// (PAID, CANCELED) are terminal.
var orderTransitions = map[string][]string{
	models.OrderStatusCreated:           {models.OrderStatusSearchingDriver, models.OrderStatusCanceled},
	models.OrderStatusPriceEstimated:    {models.OrderStatusPaymentAuthorized, models.OrderStatusCanceled},
	models.OrderStatusPaymentAuthorized: {models.OrderStatusSearchingDriver, models.OrderStatusCanceled},
	models.OrderStatusSearchingDriver:   {models.OrderStatusDriverAssigned, models.OrderStatusCanceled},
	models.OrderStatusDriverAssigned:    {models.OrderStatusInProgress, models.OrderStatusCanceled},
	models.OrderStatusInProgress:        {models.OrderStatusDelivered, models.OrderStatusCanceled},
	models.OrderStatusDelivered:         {models.OrderStatusPaid},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderStore is the persistence surface the lifecycle needs.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	FindByUser(ctx context.Context, userID uint) ([]models.Order, error)
	FindPending(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uint, status string, driverID *uint) (*models.Order, error)
	PromoteIfStatus(ctx context.Context, id uint, from, to string) (bool, error)
	Remove(ctx context.Context, id uint) error
}

// DriverReleaser returns a driver to the available pool once their order
// is finished.
type DriverReleaser interface {
	ReleaseIfBusy(ctx context.Context, id uint) (bool, error)
}

// CandidateFinder selects drivers to dispatch an order to.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, lat, lng float64) ([]models.NearestDriver, error)
}

// DispatchNotifier alerts drivers about new orders and customers about
// the milestones of theirs.
type DispatchNotifier interface {
	NotifyDriverOfNewOrder(ctx context.Context, driverUserID uint, order *models.Order, distanceKm float64) error
	NotifyCustomerOrderAccepted(ctx context.Context, order *models.Order) error
	NotifyCustomerDriverArrival(ctx context.Context, order *models.Order) error
	NotifyCustomerOrderStatus(ctx context.Context, order *models.Order, title, message string) error
}

// DispatchPolicy controls the safety net around asynchronous dispatch.
// FallbackDelay is the deferred re-check that promotes a stuck CREATED
// order. RequeueEvery of zero disables re-matching when no drivers were
// found; a positive value retries dispatch up to RequeueMaxRuns times.
type DispatchPolicy struct {
	FallbackDelay  time.Duration
	RequeueEvery   time.Duration
	RequeueMaxRuns int
}

// OrderLifecycle owns order creation, the status state machine, and the
// dispatch flow.
type OrderLifecycle struct {
	orders   OrderStore
	drivers  DriverReleaser
	matcher  CandidateFinder
	notifier DispatchNotifier
	policy   DispatchPolicy

	mu        sync.Mutex
	fallbacks map[uint]*time.Timer
}

func NewOrderLifecycle(orders OrderStore, drivers DriverReleaser, matcher CandidateFinder, notifier DispatchNotifier, policy DispatchPolicy) *OrderLifecycle {
	if policy.FallbackDelay <= 0 {
		policy.FallbackDelay = 2 * time.Second
	}
	return &OrderLifecycle{
		orders:    orders,
		drivers:   drivers,
		matcher:   matcher,
		notifier:  notifier,
		policy:    policy,
		fallbacks: make(map[uint]*time.Timer),
	}
}

// CreateOrderInput carries the requester's order parameters. EtaOverride
// of zero means compute the estimate from the route.
type CreateOrderInput struct {
	UserID      uint
	PickupLat   float64
	PickupLng   float64
	DropoffLat  float64
	DropoffLng  float64
	Price       float64
	EtaOverride int
}

// Create persists a new CREATED order and kicks off dispatch in the
// background. The returned order is usable immediately; driver matching
// happens asynchronously.
func (s *OrderLifecycle) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	eta := input.EtaOverride
	if eta <= 0 {
		eta = utils.EstimateEtaMinutes(input.PickupLat, input.PickupLng, input.DropoffLat, input.DropoffLng)
	}

	order := &models.Order{
		UserID:       input.UserID,
		Status:       models.OrderStatusCreated,
		PickupLat:    input.PickupLat,
		PickupLng:    input.PickupLng,
		DropoffLat:   input.DropoffLat,
		DropoffLng:   input.DropoffLng,
		Price:        input.Price,
		EstimatedEta: eta,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	go s.dispatch(context.Background(), order, 0)
	s.scheduleFallback(order.ID)

	return order, nil
}

// UpdateStatus applies a validated transition. Any transition cancels the
// pending dispatch fallback for that order; DELIVERED and CANCELED also
// free the assigned driver so they can take the next order.
func (s *OrderLifecycle) UpdateStatus(ctx context.Context, orderID uint, target string, driverID *uint) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, target) {
		return nil, errs.InvalidTransition(order.Status, target)
	}
	assignedDriver := order.DriverID

	updated, err := s.orders.UpdateStatus(ctx, orderID, target, driverID)
	if err != nil {
		return nil, err
	}
	s.cancelFallback(orderID)

	switch target {
	case models.OrderStatusInProgress:
		if err := s.notifier.NotifyCustomerDriverArrival(ctx, updated); err != nil {
			log.Printf("Failed to notify customer %d of driver arrival for order %d: %v", updated.UserID, updated.ID, err)
		}
	case models.OrderStatusDelivered:
		s.releaseDriver(ctx, assignedDriver, orderID)
		if err := s.notifier.NotifyCustomerOrderStatus(ctx, updated, "Order Delivered", "Your order has been delivered"); err != nil {
			log.Printf("Failed to notify customer %d of delivery for order %d: %v", updated.UserID, updated.ID, err)
		}
	case models.OrderStatusCanceled:
		s.releaseDriver(ctx, assignedDriver, orderID)
	}
	return updated, nil
}

// releaseDriver flips an assigned driver back to AVAILABLE once their
// order reaches a state they are done with.
func (s *OrderLifecycle) releaseDriver(ctx context.Context, driverID *uint, orderID uint) {
	if driverID == nil {
		return
	}
	released, err := s.drivers.ReleaseIfBusy(ctx, *driverID)
	if err != nil {
		log.Printf("Failed to release driver %d after order %d: %v", *driverID, orderID, err)
		return
	}
	if released {
		log.Printf("Driver %d released after order %d", *driverID, orderID)
	}
}

// Get, List, ListByUser and ListPending expose read paths to the API layer.

func (s *OrderLifecycle) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

func (s *OrderLifecycle) List(ctx context.Context) ([]models.Order, error) {
	return s.orders.FindAll(ctx)
}

func (s *OrderLifecycle) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

func (s *OrderLifecycle) ListPending(ctx context.Context) ([]models.Order, error) {
	return s.orders.FindPending(ctx)
}

// Delete removes an order not referenced by a payment.
func (s *OrderLifecycle) Delete(ctx context.Context, orderID uint) error {
	if err := s.orders.Remove(ctx, orderID); err != nil {
		return err
	}
	s.cancelFallback(orderID)
	return nil
}

// dispatch finds candidate drivers for the order and notifies each one.
// run counts requeue attempts for the empty-result policy.
func (s *OrderLifecycle) dispatch(ctx context.Context, order *models.Order, run int) {
	candidates, err := s.matcher.FindCandidates(ctx, order.PickupLat, order.PickupLng)
	if err != nil {
		log.Printf("Dispatch for order %d failed: %v", order.ID, err)
		return
	}

	if len(candidates) == 0 {
		log.Printf("No drivers found for order %d", order.ID)
		s.maybeRequeue(ctx, order, run)
		return
	}

	promoted, err := s.orders.PromoteIfStatus(ctx, order.ID, models.OrderStatusCreated, models.OrderStatusSearchingDriver)
	if err != nil {
		log.Printf("Failed to promote order %d to %s: %v", order.ID, models.OrderStatusSearchingDriver, err)
		return
	}
	if promoted {
		s.cancelFallback(order.ID)
		order.Status = models.OrderStatusSearchingDriver
	} else {
		// Re-read; the order may already be SEARCHING_DRIVER from an earlier
		// run, or may have progressed past dispatch entirely.
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			log.Printf("Dispatch re-check for order %d failed: %v", order.ID, err)
			return
		}
		if current.Status != models.OrderStatusSearchingDriver {
			log.Printf("Order %d progressed to %s, skipping dispatch", order.ID, current.Status)
			return
		}
		order = current
	}

	for _, candidate := range candidates {
		distanceKm := candidate.DistanceMeters / 1000
		if err := s.notifier.NotifyDriverOfNewOrder(ctx, candidate.UserID, order, distanceKm); err != nil {
			log.Printf("Failed to notify driver %d for order %d: %v", candidate.DriverID, order.ID, err)
		}
	}
}

// maybeRequeue schedules another matching run when the policy allows it.
func (s *OrderLifecycle) maybeRequeue(ctx context.Context, order *models.Order, run int) {
	if s.policy.RequeueEvery <= 0 {
		return
	}
	if run+1 >= s.policy.RequeueMaxRuns {
		log.Printf("Giving up matching for order %d after %d runs", order.ID, run+1)
		return
	}
	time.AfterFunc(s.policy.RequeueEvery, func() {
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			log.Printf("Requeue re-check for order %d failed: %v", order.ID, err)
			return
		}
		if current.Status != models.OrderStatusCreated && current.Status != models.OrderStatusSearchingDriver {
			return
		}
		s.dispatch(ctx, current, run+1)
	})
}

// scheduleFallback arms the deferred re-check that promotes an order still
// stuck at CREATED after the dispatch request. The conditional update means
// a fired timer never overwrites progress; cancellation just avoids the
// extra round trip.
func (s *OrderLifecycle) scheduleFallback(orderID uint) {
	timer := time.AfterFunc(s.policy.FallbackDelay, func() {
		s.mu.Lock()
		delete(s.fallbacks, orderID)
		s.mu.Unlock()

		promoted, err := s.orders.PromoteIfStatus(context.Background(), orderID, models.OrderStatusCreated, models.OrderStatusSearchingDriver)
		if err != nil {
			log.Printf("Dispatch fallback for order %d failed: %v", orderID, err)
			return
		}
		if promoted {
			log.Printf("Dispatch fallback promoted order %d to %s", orderID, models.OrderStatusSearchingDriver)
		}
	})

	s.mu.Lock()
	if old, ok := s.fallbacks[orderID]; ok {
		old.Stop()
	}
	s.fallbacks[orderID] = timer
	s.mu.Unlock()
}

func (s *OrderLifecycle) cancelFallback(orderID uint) {
	s.mu.Lock()
	if timer, ok := s.fallbacks[orderID]; ok {
		timer.Stop()
		delete(s.fallbacks, orderID)
	}
	s.mu.Unlock()
}
