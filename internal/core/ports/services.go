package ports

import (
	"context"
	"net"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// EventPublisher publishes directory events to a message broker.
type EventPublisher interface {
	PublishBusinessClicked(ctx context.Context, event *domain.BusinessClicked) error
}

// EventSubscriber subscribes to directory events from a message broker.
type EventSubscriber interface {
	SubscribeBusinessChanged(ctx context.Context, handler func(ctx context.Context, businessID string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves free text to coordinates using an external service.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodeResult, error)
}

// Locator estimates a client's position from its IP address.
type Locator interface {
	Locate(ip net.IP) (domain.Coordinate, float64, error) // coordinate, accuracy radius in km
}

// MapEngine is the event surface of a map renderer. Handlers receive settled
// viewports only.
type MapEngine interface {
	OnDragEnd(fn func(domain.ViewportChanged))
	OnZoomEnd(fn func(domain.ViewportChanged))
}
