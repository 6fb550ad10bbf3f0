package services

import (
	"context"
	"fmt"
	"log"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

// DriverAccessor is the driver lookup the coordinator needs for
// validation before attempting the claim.
type DriverAccessor interface {
	FindByID(ctx context.Context, id uint) (*models.Driver, error)
}

// OrderAssigner is the atomic claim operation. It must only succeed for a
// SEARCHING_DRIVER order with no driver and an AVAILABLE driver, as a
// conditional write against the persisted state.
type OrderAssigner interface {
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	AssignDriver(ctx context.Context, orderID, driverID uint) error
}

// AcceptanceCoordinator handles a driver's claim of an open order. The
// up-front validation exists for precise error kinds; correctness under
// concurrency comes entirely from the conditional writes in AssignDriver.
type AcceptanceCoordinator struct {
	orders   OrderAssigner
	drivers  DriverAccessor
	notifier DispatchNotifier
}

func NewAcceptanceCoordinator(orders OrderAssigner, drivers DriverAccessor, notifier DispatchNotifier) *AcceptanceCoordinator {
	return &AcceptanceCoordinator{orders: orders, drivers: drivers, notifier: notifier}
}

// Accept atomically assigns the order to the driver and marks the driver
// BUSY. Under concurrent accepts for the same order at most one call
// succeeds; the losers get Conflict or DriverUnavailable.
func (c *AcceptanceCoordinator) Accept(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusSearchingDriver {
		return nil, errs.InvalidState(fmt.Sprintf("order %d is %s, not %s", orderID, order.Status, models.OrderStatusSearchingDriver))
	}
	if order.HasDriver() {
		return nil, errs.InvalidState(fmt.Sprintf("order %d already has a driver", orderID))
	}

	driver, err := c.drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status != models.DriverStatusAvailable {
		return nil, errs.ErrDriverUnavailable
	}

	if err := c.orders.AssignDriver(ctx, orderID, driverID); err != nil {
		return nil, err
	}

	accepted, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// The claim is committed; notification failure must not undo it.
	if err := c.notifier.NotifyCustomerOrderAccepted(ctx, accepted); err != nil {
		log.Printf("Failed to notify customer for accepted order %d: %v", accepted.ID, err)
	}

	return accepted, nil
}
