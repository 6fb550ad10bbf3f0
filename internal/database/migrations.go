package database

import (
	"gorm.io/gorm"

	"delivering/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Driver{},
		&models.Order{},
		&models.Notification{},
		&models.Payment{},
	)
	if err != nil {
		return err
	}

	// PostGIS powers the nearest-driver radius query. The location column
	// is kept in sync with lat/lng by the driver repository.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		return err
	}
	if err := db.Exec(`ALTER TABLE drivers ADD COLUMN IF NOT EXISTS location geography(Point,4326)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_drivers_location ON drivers USING GIST (location)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`UPDATE drivers SET location = ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography WHERE location IS NULL`).Error; err != nil {
		return err
	}

	// Role check; mirrors the enum the application enforces.
	db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_role_check`)
	db.Exec(`ALTER TABLE users ADD CONSTRAINT users_role_check CHECK (role IN ('CUSTOMER', 'DRIVER', 'ADMIN'))`)

	return nil
}
