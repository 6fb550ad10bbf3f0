package services

import (
	"context"
	"fmt"

	"delivering/internal/models"
)

// Matching defaults, overridable through config.
const (
	DefaultMatchLimit        = 5
	DefaultMatchRadiusMeters = 10000.0
)

// DriverFinder runs the proximity query against the driver store.
type DriverFinder interface {
	FindNearest(ctx context.Context, lat, lng float64, limit int, maxRadiusMeters float64) ([]models.NearestDriver, error)
}

// DriverMatcher selects candidate drivers for a pickup location, nearest
// first. Only AVAILABLE drivers inside the search radius are returned.
type DriverMatcher struct {
	drivers      DriverFinder
	limit        int
	radiusMeters float64
}

func NewDriverMatcher(drivers DriverFinder, limit int, radiusMeters float64) *DriverMatcher {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultMatchRadiusMeters
	}
	return &DriverMatcher{drivers: drivers, limit: limit, radiusMeters: radiusMeters}
}

// FindCandidates returns up to the configured number of available drivers
// near the pickup point, closest first. An empty result is not an error.
func (m *DriverMatcher) FindCandidates(ctx context.Context, lat, lng float64) ([]models.NearestDriver, error) {
	candidates, err := m.drivers.FindNearest(ctx, lat, lng, m.limit, m.radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("find nearest drivers: %w", err)
	}
	return candidates, nil
}
