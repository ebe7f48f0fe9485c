// Package geoip estimates a client's position from a MaxMind City database.
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// ErrUnknownLocation is returned when the database has no position for an IP.
var ErrUnknownLocation = errors.New("no location for address")

// Locator implements ports.Locator.
type Locator struct {
	reader *geoip2.Reader
}

// Open loads the City database at path.
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Locator{reader: r}, nil
}

// Locate returns the approximate position of ip and its accuracy radius in km.
func (l *Locator) Locate(ip net.IP) (domain.Coordinate, float64, error) {
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return domain.Coordinate{}, 0, ErrUnknownLocation
	}
	rec, err := l.reader.City(ip)
	if err != nil {
		return domain.Coordinate{}, 0, fmt.Errorf("lookup %s: %w", ip, err)
	}
	c := domain.Coordinate{Latitude: rec.Location.Latitude, Longitude: rec.Location.Longitude}
	if (c.Latitude == 0 && c.Longitude == 0) || !c.Valid() {
		return domain.Coordinate{}, 0, ErrUnknownLocation
	}
	return c, float64(rec.Location.AccuracyRadius), nil
}

// Close releases the database.
func (l *Locator) Close() error {
	return l.reader.Close()
}
