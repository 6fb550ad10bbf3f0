package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("order", id)
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) FindByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// FindPending returns orders still waiting for a driver, oldest first.
func (r *OrderRepository) FindPending(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OrderStatusSearchingDriver).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// UpdateStatus writes a validated transition. The lifecycle service is
// responsible for checking the transition table first.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, status string, driverID *uint) (*models.Order, error) {
	updates := map[string]interface{}{"status": status}
	if driverID != nil {
		updates["driver_id"] = *driverID
	}
	if status == models.OrderStatusCanceled {
		// A canceled order holds no driver; the assignment only survives
		// on orders that run through to completion.
		updates["driver_id"] = nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// PromoteIfStatus moves the order from one status to another only if it is
// still in the source status. Returns false when the order progressed in
// the meantime; used by the dispatch fallback so it never overwrites.
func (r *OrderRepository) PromoteIfStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AssignDriver atomically claims a SEARCHING_DRIVER order for a driver and
// flips the driver to BUSY in one transaction. Both writes are conditional
// updates checked through RowsAffected, so two concurrent accept calls for
// the same order cannot both succeed: the check and the write are a single
// statement evaluated against the committed row, not a read followed by a
// save.
func (r *OrderRepository) AssignDriver(ctx context.Context, orderID, driverID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND driver_id IS NULL", orderID, models.OrderStatusSearchingDriver).
			Updates(map[string]interface{}{
				"status":    models.OrderStatusDriverAssigned,
				"driver_id": driverID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Conflict("order already accepted or not searching")
		}

		res = tx.Model(&models.Driver{}).
			Where("id = ? AND status = ?", driverID, models.DriverStatusAvailable).
			Update("status", models.DriverStatusBusy)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrDriverUnavailable
		}
		return nil
	})
}

// Remove deletes an order unless a payment references it.
func (r *OrderRepository) Remove(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("order_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errs.InvalidState("order is referenced by a payment")
	}
	res := r.db.WithContext(ctx).Delete(&models.Order{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("order", id)
	}
	return nil
}
