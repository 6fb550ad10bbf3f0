package utils

import (
	"math"
)

// AverageSpeedKmh is the assumed average delivery speed used for ETA
// estimates when no override is supplied.
const AverageSpeedKmh = 40.0

// EtaBufferMinutes is added on top of the travel-time estimate.
const EtaBufferMinutes = 5.0

// HaversineDistance calculates the distance between two points on Earth
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371 // Earth's radius in kilometers

	// Convert degrees to radians
	lat1Rad := lat1 * math.Pi / 180
	lng1Rad := lng1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lng2Rad := lng2 * math.Pi / 180

	// Haversine formula
	dlat := lat2Rad - lat1Rad
	dlng := lng2Rad - lng1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dlng/2)*math.Sin(dlng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// EstimateEtaMinutes estimates delivery time from pickup to dropoff:
// travel time at AverageSpeedKmh plus a fixed buffer, rounded up to a whole
// minute.
func EstimateEtaMinutes(pickupLat, pickupLng, dropoffLat, dropoffLng float64) int {
	distanceKm := HaversineDistance(pickupLat, pickupLng, dropoffLat, dropoffLng)
	etaMinutes := (distanceKm / AverageSpeedKmh) * 60
	return int(math.Ceil(etaMinutes + EtaBufferMinutes))
}

// IsWithinRadius checks if a point is within a specified radius of another point
func IsWithinRadius(centerLat, centerLng, pointLat, pointLng, radiusKm float64) bool {
	distance := HaversineDistance(centerLat, centerLng, pointLat, pointLng)
	return distance <= radiusKm
}

// Point represents a geographical point
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
