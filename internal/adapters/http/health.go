package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": Version,
		})
	}
}

// ReadyHandler checks the business store, the cache and the click feed.
// Only the store is required; the others degrade gracefully.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if deps.Store != nil {
			if err := deps.Store.Ping(ctx); err != nil {
				checks["store"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["store"] = "ok"
			}
		} else {
			checks["store"] = "not configured"
			allOK = false
		}

		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		if deps.Clicks != nil {
			if deps.Clicks.Connected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
			}
		} else {
			checks["nats"] = "not configured"
		}

		status, code := "ready", fiber.StatusOK
		if !allOK {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
