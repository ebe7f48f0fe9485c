package geospatial

import (
	"math"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// BoundingBox returns the smallest lat/long rectangle containing the circle of
// radiusMiles around center, computed on the sphere.
//
// When the circle reaches a pole the box spans every longitude. When it
// crosses the antimeridian the longitudes are wrapped by 360°, so the result
// has MinLong > MaxLong (see ViewportBounds.CrossesAntimeridian).
func BoundingBox(center domain.Coordinate, radiusMiles float64) domain.ViewportBounds {
	if radiusMiles < 0 {
		radiusMiles = 0
	}
	radDist := radiusMiles / EarthRadiusMiles
	deltaLat := toDeg(radDist)

	minLat := center.Latitude - deltaLat
	maxLat := center.Latitude + deltaLat

	if minLat <= -90 || maxLat >= 90 {
		return domain.ViewportBounds{
			MinLat:  math.Max(minLat, -90),
			MaxLat:  math.Min(maxLat, 90),
			MinLong: -180,
			MaxLong: 180,
		}
	}

	deltaLon := toDeg(math.Asin(math.Min(1, math.Sin(radDist)/math.Cos(toRad(center.Latitude)))))
	minLon := center.Longitude - deltaLon
	if minLon < -180 {
		minLon += 360
	}
	maxLon := center.Longitude + deltaLon
	if maxLon > 180 {
		maxLon -= 360
	}

	return domain.ViewportBounds{MinLat: minLat, MaxLat: maxLat, MinLong: minLon, MaxLong: maxLon}
}

// BoundingBoxKm is BoundingBox with the radius in kilometres.
func BoundingBoxKm(center domain.Coordinate, radiusKm float64) domain.ViewportBounds {
	return BoundingBox(center, KmToMiles(radiusKm))
}

// Diagonal is the distance in miles from the north-west to the south-east
// corner of b.
func Diagonal(b domain.ViewportBounds) float64 {
	return Distance(
		domain.Coordinate{Latitude: b.MaxLat, Longitude: b.MinLong},
		domain.Coordinate{Latitude: b.MinLat, Longitude: b.MaxLong},
	)
}

// Pad grows b by degrees on all four sides, clamped to the valid ranges.
func Pad(b domain.ViewportBounds, degrees float64) domain.ViewportBounds {
	return domain.ViewportBounds{
		MinLat:  math.Max(b.MinLat-degrees, -90),
		MaxLat:  math.Min(b.MaxLat+degrees, 90),
		MinLong: math.Max(b.MinLong-degrees, -180),
		MaxLong: math.Min(b.MaxLong+degrees, 180),
	}
}

// Center returns the midpoint of b.
func Center(b domain.ViewportBounds) domain.Coordinate {
	return b.Center()
}
