package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses that did not
// set one. Viewport queries get short lifetimes, single records longer.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready" || path == "/metrics":
			ttl = "no-cache"
		case path == "/v1/businesses/search", strings.HasPrefix(path, "/v1/clusters"):
			ttl = "public, max-age=30"
		case path == "/v1/businesses/top-clicks":
			ttl = "public, max-age=60"
		case path == "/v1/geocode":
			ttl = "public, max-age=300"
		case path == "/v1/businesses/batch", strings.HasPrefix(path, "/v1/businesses/"):
			ttl = "public, max-age=600"
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
