package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/supportyourlocal/mapdir/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// listingSunset is when the unbounded /v1/businesses listing goes away.
var listingSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Method: fiber.MethodGet, Path: "/v1/businesses", SunsetDate: listingSunset, Alternative: "/v1/businesses/search"},
	}))

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	with := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1 := app.Group("/v1")
	// Fixed segments before /businesses/:id.
	v1.Get("/businesses/search", with(SearchBusinessesHandler(deps)))
	v1.Get("/businesses/batch", with(BatchBusinessesHandler(deps)))
	v1.Get("/businesses/top-clicks", with(TopClicksHandler(deps)))
	v1.Get("/businesses/recent-clicks", with(RecentClicksHandler(deps)))
	v1.Get("/businesses/:id", with(GetBusinessHandler(deps)))
	v1.Post("/businesses/:id/clicks", with(RecordClickHandler(deps)))
	v1.Get("/businesses", with(ListBusinessesHandler(deps)))
	v1.Get("/stats", with(StatsHandler(deps)))
	v1.Get("/clusters", with(ClustersHandler(deps)))
	v1.Get("/clusters/:id/expansion-zoom", with(ExpansionZoomHandler(deps)))
	v1.Get("/geocode", with(GeocodeHandler(deps)))
	v1.Get("/viewport/initial", with(InitialViewportHandler(deps)))

	app.Post("/graphql", with(GraphQLHandler(deps)))

	SetupDocs(app, "api/openapi.yaml")

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(ViewportSessionHandler(deps)))
}
