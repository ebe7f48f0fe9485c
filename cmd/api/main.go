package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/supportyourlocal/mapdir/internal/adapters/geocoder"
	"github.com/supportyourlocal/mapdir/internal/adapters/geoip"
	"github.com/supportyourlocal/mapdir/internal/adapters/http"
	natsadapter "github.com/supportyourlocal/mapdir/internal/adapters/nats"
	"github.com/supportyourlocal/mapdir/internal/adapters/storage"
	"github.com/supportyourlocal/mapdir/internal/adapters/valkey"
	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/cluster"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
	"github.com/supportyourlocal/mapdir/internal/pkg/logging"
	"github.com/supportyourlocal/mapdir/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("mapdir-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Store
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()
	go store.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache
	var cache ports.CacheService
	var cachePinger http.Pinger
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache, cachePinger = vc, vc
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Use cases
	searchSvc := usecases.NewSearchService(store.Businesses, cache, cfg.Search.MaxRangeMiles, cfg.Search.CacheTTLSeconds)
	businessSvc := usecases.NewBusinessService(store.Businesses, cache, events)

	var clicks http.ClickFeed
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		clicks = sub
		if err := sub.SubscribeBusinessChanged(ctx, businessSvc.Invalidate); err != nil {
			slog.Warn("business change subscription failed", "error", err)
		}
	}

	var gc ports.Geocoder
	if cfg.Geocoder.Enabled {
		gc = geocoder.New(geocoder.Config{
			BaseURL:     cfg.Geocoder.BaseURL,
			AccessToken: cfg.Geocoder.AccessToken,
			Country:     cfg.Geocoder.Country,
			Limit:       cfg.Geocoder.Limit,
			Timeout:     time.Duration(cfg.Geocoder.TimeoutMS) * time.Millisecond,
		})
	}

	var locator ports.Locator
	if cfg.GeoIP.DatabasePath != "" {
		loc, err := geoip.Open(cfg.GeoIP.DatabasePath)
		if err != nil {
			slog.Warn("geoip unavailable", "error", err)
		} else {
			defer loc.Close()
			locator = loc
		}
	}

	deps := &http.Dependencies{
		Search:     searchSvc,
		Ranking:    usecases.NewRankingService(),
		Businesses: businessSvc,
		Geocode:    usecases.NewGeocodeService(gc),
		Locator:    locator,
		Clicks:     clicks,
		Store:      store,
		Cache:      cachePinger,
		Settings:   settingsFrom(cfg),
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "mapdir API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Request-ID",
		ExposeHeaders:    "X-Request-ID, X-Search-Status, Link, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "driver", cfg.Database.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func settingsFrom(cfg *config.Config) http.Settings {
	return http.Settings{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		DefaultCenter: domain.Coordinate{
			Latitude:  cfg.Search.DefaultCenterLat,
			Longitude: cfg.Search.DefaultCenterLng,
		},
		DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
		Viewport: usecases.ViewportConfig{
			MaxRangeMiles:  cfg.Search.MaxRangeMiles,
			BufferDegrees:  cfg.Search.BufferDegrees,
			ExtendCapMiles: cfg.Search.ExtendCapMiles,
			Debounce:       cfg.Search.Debounce(),
			PageSize:       cfg.Search.MaxPageSize,
			MaxPages:       cfg.Search.ViewportMaxPages,
			Cluster: cluster.Options{
				Radius:              cfg.Cluster.RadiusPx,
				MaxZoom:             cfg.Cluster.MaxZoom,
				TileSize:            cfg.Cluster.TileSize,
				ClickToleranceMiles: cfg.Cluster.ClickToleranceMiles,
			},
		},
	}
}
