package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivering/internal/models"
)

type recordingFinder struct {
	lat, lng float64
	limit    int
	radius   float64
	result   []models.NearestDriver
	err      error
}

func (f *recordingFinder) FindNearest(ctx context.Context, lat, lng float64, limit int, maxRadiusMeters float64) ([]models.NearestDriver, error) {
	f.lat, f.lng, f.limit, f.radius = lat, lng, limit, maxRadiusMeters
	return f.result, f.err
}

func TestDriverMatcherDefaults(t *testing.T) {
	finder := &recordingFinder{}
	matcher := NewDriverMatcher(finder, 0, 0)

	_, err := matcher.FindCandidates(context.Background(), 30.0, 31.0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMatchLimit, finder.limit)
	assert.Equal(t, DefaultMatchRadiusMeters, finder.radius)
}

func TestDriverMatcherPassesConfiguredBounds(t *testing.T) {
	finder := &recordingFinder{result: []models.NearestDriver{
		{DriverID: 1, UserID: 10, Status: models.DriverStatusAvailable, DistanceMeters: 250},
	}}
	matcher := NewDriverMatcher(finder, 3, 5000)

	candidates, err := matcher.FindCandidates(context.Background(), 30.0444, 31.2357)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, 3, finder.limit)
	assert.Equal(t, 5000.0, finder.radius)
	assert.Equal(t, 30.0444, finder.lat)
	assert.Equal(t, 31.2357, finder.lng)
}

func TestDriverMatcherEmptyIsNotAnError(t *testing.T) {
	matcher := NewDriverMatcher(&recordingFinder{}, 5, 10000)
	candidates, err := matcher.FindCandidates(context.Background(), 30.0, 31.0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDriverMatcherWrapsStoreError(t *testing.T) {
	matcher := NewDriverMatcher(&recordingFinder{err: errors.New("connection reset")}, 5, 10000)
	_, err := matcher.FindCandidates(context.Background(), 30.0, 31.0)
	assert.ErrorContains(t, err, "find nearest drivers")
}
