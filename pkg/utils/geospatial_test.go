package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	t.Run("zero distance for identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineDistance(30.0444, 31.2357, 30.0444, 31.2357))
	})

	t.Run("known city pair", func(t *testing.T) {
		// Paris to London is roughly 344 km great-circle.
		d := HaversineDistance(48.8566, 2.3522, 51.5074, -0.1278)
		assert.InDelta(t, 344, d, 5)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := HaversineDistance(30.0444, 31.2357, 30.0166, 31.4333)
		b := HaversineDistance(30.0166, 31.4333, 30.0444, 31.2357)
		assert.InDelta(t, a, b, 1e-9)
	})
}

func TestEstimateEtaMinutes(t *testing.T) {
	t.Run("matches travel time plus buffer rounded up", func(t *testing.T) {
		// Downtown Cairo to New Cairo.
		eta := EstimateEtaMinutes(30.0444, 31.2357, 30.0166, 31.4333)

		distanceKm := HaversineDistance(30.0444, 31.2357, 30.0166, 31.4333)
		expected := int(math.Ceil((distanceKm/AverageSpeedKmh)*60 + EtaBufferMinutes))

		assert.Equal(t, expected, eta)
		assert.Greater(t, eta, 0)
	})

	t.Run("zero distance is just the buffer", func(t *testing.T) {
		eta := EstimateEtaMinutes(30.0, 31.0, 30.0, 31.0)
		assert.Equal(t, int(EtaBufferMinutes), eta)
	})

	t.Run("longer route means longer eta", func(t *testing.T) {
		short := EstimateEtaMinutes(30.0444, 31.2357, 30.0166, 31.4333)
		long := EstimateEtaMinutes(48.8566, 2.3522, 51.5074, -0.1278)
		assert.Greater(t, long, short)
	})
}

func TestIsWithinRadius(t *testing.T) {
	assert.True(t, IsWithinRadius(30.0444, 31.2357, 30.0450, 31.2360, 1.0))
	assert.False(t, IsWithinRadius(30.0444, 31.2357, 30.0166, 31.4333, 1.0))
}
