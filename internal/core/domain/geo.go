package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS 84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is finite and inside the WGS 84 ranges.
func (c Coordinate) Valid() bool {
	return finite(c.Latitude) && finite(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// ViewportBounds is an axis-aligned lat/long rectangle.
//
// A viewport coming from a map always has MinLong < MaxLong. A box produced by
// geospatial.BoundingBox may wrap the antimeridian, in which case
// MinLong > MaxLong and the box covers [MinLong, 180] ∪ [-180, MaxLong].
type ViewportBounds struct {
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`
	MinLong float64 `json:"min_long"`
	MaxLong float64 `json:"max_long"`
}

// Validate checks the viewport invariants: finite values, valid ranges and
// strictly ordered edges.
func (b ViewportBounds) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLong, b.MaxLong} {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite edge", ErrInvalidBounds)
		}
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBounds)
	}
	if b.MinLong < -180 || b.MaxLong > 180 {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBounds)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: min_lat %.6f >= max_lat %.6f", ErrInvalidBounds, b.MinLat, b.MaxLat)
	}
	if b.MinLong >= b.MaxLong {
		return fmt.Errorf("%w: min_long %.6f >= max_long %.6f", ErrInvalidBounds, b.MinLong, b.MaxLong)
	}
	return nil
}

// ValidateWrapped is Validate but also accepts boxes that cross the antimeridian.
func (b ViewportBounds) ValidateWrapped() error {
	if !b.CrossesAntimeridian() {
		return b.Validate()
	}
	flat := ViewportBounds{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLong: -180, MaxLong: 180}
	if err := flat.Validate(); err != nil {
		return err
	}
	if b.MinLong > 180 || b.MaxLong < -180 {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBounds)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps past ±180°.
func (b ViewportBounds) CrossesAntimeridian() bool {
	return b.MinLong > b.MaxLong
}

// LongitudeRanges splits the box into one or two non-wrapping longitude ranges.
// The ±180° ends of a split box are inclusive; they are the same meridian and
// lie inside the box.
func (b ViewportBounds) LongitudeRanges() []Range {
	if b.CrossesAntimeridian() {
		return []Range{
			{Min: b.MinLong, Max: 180, IncludeMax: true},
			{Min: -180, Max: b.MaxLong, IncludeMin: true},
		}
	}
	return []Range{{Min: b.MinLong, Max: b.MaxLong}}
}

// ContainsPoint reports whether c lies inside the box (edges inclusive).
func (b ViewportBounds) ContainsPoint(c Coordinate) bool {
	if c.Latitude < b.MinLat || c.Latitude > b.MaxLat {
		return false
	}
	for _, r := range b.LongitudeRanges() {
		if c.Longitude >= r.Min && c.Longitude <= r.Max {
			return true
		}
	}
	return false
}

// Contains reports whether other lies entirely inside b.
func (b ViewportBounds) Contains(other ViewportBounds) bool {
	if other.MinLat < b.MinLat || other.MaxLat > b.MaxLat {
		return false
	}
	outer := b.LongitudeRanges()
	for _, r := range other.LongitudeRanges() {
		inside := false
		for _, o := range outer {
			if r.Min >= o.Min && r.Max <= o.Max {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

// Center returns the geometric midpoint of the box.
func (b ViewportBounds) Center() Coordinate {
	lng := (b.MinLong + b.MaxLong) / 2
	if b.CrossesAntimeridian() {
		lng = (b.MinLong + b.MaxLong + 360) / 2
		if lng > 180 {
			lng -= 360
		}
	}
	return Coordinate{Latitude: (b.MinLat + b.MaxLat) / 2, Longitude: lng}
}

// Range is a numeric interval. Stores treat BusinessFilter ranges as
// exclusive at both ends unless IncludeMin or IncludeMax is set.
type Range struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	IncludeMin bool    `json:"include_min,omitempty"`
	IncludeMax bool    `json:"include_max,omitempty"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
