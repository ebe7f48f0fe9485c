package http

import (
	"context"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
)

// Pinger is a backing service that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClickFeed streams recorded clicks to live viewport sessions.
type ClickFeed interface {
	SubscribeClicks(handler func(ev *domain.BusinessClicked)) (func(), error)
	Connected() bool
}

// Settings are the request defaults and limits taken from configuration.
type Settings struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultCenter   domain.Coordinate
	DefaultRadiusKm float64
	Viewport        usecases.ViewportConfig
}

// DefaultSettings matches the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultPageSize: 100,
		MaxPageSize:     500,
		DefaultCenter:   domain.Coordinate{Latitude: 51.1657, Longitude: 10.4515},
		DefaultRadiusKm: 50,
		Viewport:        usecases.DefaultViewportConfig(),
	}
}

// Dependencies holds all services needed by HTTP handlers. Store, Cache,
// Clicks, Geocode and Locator may be nil.
type Dependencies struct {
	Search     usecases.Searcher
	Ranking    *usecases.RankingService
	Businesses *usecases.BusinessService
	Geocode    *usecases.GeocodeService
	Locator    ports.Locator
	Clicks     ClickFeed
	Store      Pinger
	Cache      Pinger
	Settings   Settings
}
