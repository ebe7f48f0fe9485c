package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with a sunset date.
type DeprecatedRoute struct {
	Method      string    // empty matches any method
	Path        string    // route pattern, :param segments match any value
	SunsetDate  time.Time // date the endpoint will be removed
	Alternative string    // successor endpoint (optional)
}

// DeprecationMiddleware adds Deprecation, Sunset and Link headers (RFC 8594,
// RFC 8288) to requests matching a deprecated route.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, d := range deprecated {
			if d.Method != "" && d.Method != c.Method() {
				continue
			}
			if !matchPattern(c.Path(), d.Path) {
				continue
			}
			c.Set("Deprecation", "true")
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))
			if d.Alternative != "" {
				c.Append(fiber.HeaderLink, fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative))
			}
			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}
		return c.Next()
	}
}

// matchPattern compares path segments, letting :param segments match any
// non-empty value. Trailing slashes are ignored.
func matchPattern(path, pattern string) bool {
	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return false
	}
	for i, q := range qs {
		if strings.HasPrefix(q, ":") {
			if ps[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != q {
			return false
		}
	}
	return true
}
