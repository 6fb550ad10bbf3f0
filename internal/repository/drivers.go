package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

type DriverRepository struct {
	db *gorm.DB
}

func NewDriverRepository(db *gorm.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create inserts the user account and the driver profile in one
// transaction, then writes the geography column from the initial position.
func (r *DriverRepository) Create(ctx context.Context, user *models.User, driver *models.Driver) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		driver.UserID = user.ID
		if err := tx.Create(driver).Error; err != nil {
			return err
		}
		return tx.Exec(
			`UPDATE drivers SET location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography WHERE id = ?`,
			driver.Longitude, driver.Latitude, driver.ID,
		).Error
	})
}

func (r *DriverRepository) FindByID(ctx context.Context, id uint) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).Preload("User").First(&driver, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("driver", id)
		}
		return nil, err
	}
	return &driver, nil
}

func (r *DriverRepository) FindByUserID(ctx context.Context, userID uint) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("driver for user", userID)
		}
		return nil, err
	}
	return &driver, nil
}

func (r *DriverRepository) FindAll(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	err := r.db.WithContext(ctx).Preload("User").Order("created_at DESC").Find(&drivers).Error
	return drivers, err
}

// UpdateLocation writes the driver's position, keeping the indexed
// geography column in sync with the plain lat/lng columns.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id uint, lat, lng float64) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE drivers
		 SET latitude = ?, longitude = ?,
		     location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography,
		     updated_at = NOW()
		 WHERE id = ? AND deleted_at IS NULL`,
		lat, lng, lng, lat, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("driver", id)
	}
	return nil
}

func (r *DriverRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Driver{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("driver", id)
	}
	return nil
}

// ReleaseIfBusy returns a driver to AVAILABLE once their order is
// finished. Conditional on BUSY so it never flips an OFFLINE driver back
// online.
func (r *DriverRepository) ReleaseIfBusy(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Driver{}).
		Where("id = ? AND status = ?", id, models.DriverStatusBusy).
		Update("status", models.DriverStatusAvailable)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindNearest returns AVAILABLE drivers within maxRadiusMeters of the
// point, closest first. The query runs against the GIST index on the
// geography column; an empty result is a valid outcome, not an error.
func (r *DriverRepository) FindNearest(ctx context.Context, lat, lng float64, limit int, maxRadiusMeters float64) ([]models.NearestDriver, error) {
	var drivers []models.NearestDriver
	err := r.db.WithContext(ctx).Raw(
		`SELECT
		   d.id AS driver_id,
		   d.user_id,
		   d.status,
		   ST_Distance(d.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS distance_meters
		 FROM drivers d
		 WHERE d.status = ?
		   AND d.deleted_at IS NULL
		   AND ST_DWithin(
		     d.location,
		     ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography,
		     ?
		   )
		 ORDER BY distance_meters ASC
		 LIMIT ?`,
		lng, lat, models.DriverStatusAvailable, lng, lat, maxRadiusMeters, limit,
	).Scan(&drivers).Error
	return drivers, err
}
