package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are polled by infrastructure and only logged on failure.
var quietPaths = map[string]bool{
	"/metrics":   true,
	"/v1/health": true,
	"/v1/ready":  true,
}

// AccessLogMiddleware writes one structured line per request.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		level := slog.LevelInfo
		switch {
		case err != nil || status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		if level == slog.LevelInfo && quietPaths[c.Path()] {
			return err
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
			slog.Int("bytes_out", len(c.Response().Body())),
			slog.String("ip", c.IP()),
		}
		if s := c.GetRespHeader("X-Search-Status"); s != "" {
			attrs = append(attrs, slog.String("search_status", s))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), level, "http request", attrs...)
		return err
	}
}
