// Package geospatial holds the stateless coordinate math used by search,
// ranking and clustering.
package geospatial

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

const (
	EarthRadiusKm    = 6371.0
	milesPerKm       = 0.621371
	EarthRadiusMiles = EarthRadiusKm * milesPerKm
)

// Distance returns the great-circle distance between a and b in miles.
func Distance(a, b domain.Coordinate) float64 {
	return centralAngle(a, b) * EarthRadiusMiles
}

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b domain.Coordinate) float64 {
	return centralAngle(a, b) * EarthRadiusKm
}

// KmToMiles converts kilometres to miles.
func KmToMiles(km float64) float64 { return km * milesPerKm }

// MilesToKm converts miles to kilometres.
func MilesToKm(mi float64) float64 { return mi / milesPerKm }

// centralAngle is the haversine angle between two points, in radians.
func centralAngle(a, b domain.Coordinate) float64 {
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians()
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
