package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

const maxQueryLen = 200

// queryBounds reads min_lat, max_lat, min_long and max_long.
func queryBounds(c *fiber.Ctx) (domain.ViewportBounds, error) {
	var b domain.ViewportBounds
	fields := []struct {
		name string
		dst  *float64
	}{
		{"min_lat", &b.MinLat},
		{"max_lat", &b.MaxLat},
		{"min_long", &b.MinLong},
		{"max_long", &b.MaxLong},
	}
	for _, f := range fields {
		raw := c.Query(f.name)
		if raw == "" {
			return b, fmt.Errorf("%w: %s is required", domain.ErrInvalidBounds, f.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidBounds, f.name)
		}
		*f.dst = v
	}
	return b, b.Validate()
}

// hasBounds reports whether any bounds parameter was sent.
func hasBounds(c *fiber.Ctx) bool {
	return c.Query("min_lat") != "" || c.Query("max_lat") != "" ||
		c.Query("min_long") != "" || c.Query("max_long") != ""
}

// queryCoordinate reads an optional lat/lng pair. Both or neither must be set.
func queryCoordinate(c *fiber.Ctx) (*domain.Coordinate, error) {
	lat, lng := c.Query("lat"), c.Query("lng")
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: lat and lng must both be numbers", domain.ErrInvalidFilter)
	}
	pt := domain.Coordinate{Latitude: la, Longitude: lo}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: lat/lng out of range", domain.ErrInvalidFilter)
	}
	return &pt, nil
}

// queryText reads the trimmed q parameter.
func queryText(c *fiber.Ctx) (string, error) {
	q := strings.TrimSpace(c.Query("q"))
	if len(q) > maxQueryLen {
		return "", fmt.Errorf("%w: query too long (max %d characters)", domain.ErrInvalidFilter, maxQueryLen)
	}
	return q, nil
}

// queryZoom reads the map zoom, 0-22.
func queryZoom(c *fiber.Ctx) (int, error) {
	z := c.QueryInt("zoom", -1)
	if z < 0 || z > 22 {
		return 0, fmt.Errorf("%w: zoom must be 0-22", domain.ErrInvalidFilter)
	}
	return z, nil
}

// queryIDs reads a comma-separated id list.
func queryIDs(c *fiber.Ctx, max int) ([]string, error) {
	raw := c.Query("ids")
	if raw == "" {
		return nil, fmt.Errorf("%w: ids query parameter is required", domain.ErrInvalidFilter)
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) > max {
		return nil, fmt.Errorf("%w: between 1 and %d ids required", domain.ErrInvalidFilter, max)
	}
	return ids, nil
}
