package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
	"github.com/supportyourlocal/mapdir/internal/pkg/metrics"
)

// StatsCacheKey holds the cached DirectoryStats. The stats refresh workflow
// writes it; BusinessService.Stats reads it.
const StatsCacheKey = "directory:stats"

const (
	businessTTL = 600
	statsTTL    = 3600
	clicksTTL   = 120
)

// BusinessService serves single-record reads and the click-history features.
type BusinessService struct {
	businesses ports.BusinessRepository
	cache      ports.CacheService
	events     ports.EventPublisher
	now        func() time.Time
}

// NewBusinessService creates a BusinessService. cache and events may be nil.
func NewBusinessService(businesses ports.BusinessRepository, cache ports.CacheService, events ports.EventPublisher) *BusinessService {
	return &BusinessService{businesses: businesses, cache: cache, events: events, now: time.Now}
}

func businessKey(id string) string { return "businesses:id:" + id }

func topClicksKey(limit int) string { return fmt.Sprintf("businesses:top:%d", limit) }

// GetByID returns a single business.
func (s *BusinessService) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", domain.ErrNotFound)
	}
	var b domain.Business
	if s.getCached(ctx, businessKey(id), "business", &b) {
		return &b, nil
	}

	got, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, businessKey(id), got, businessTTL)
	return got, nil
}

// GetByIDs returns several businesses in one store round trip.
func (s *BusinessService) GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.businesses.GetByIDs(ctx, ids)
}

// List pages through the whole directory in store order.
func (s *BusinessService) List(ctx context.Context, offset, limit int) ([]domain.Business, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidPage)
	}
	return s.businesses.Find(ctx, domain.BusinessFilter{}, domain.Page{Skip: offset, Limit: limit})
}

// TopClicks returns the most clicked businesses, optionally restricted to a
// radius around near.
func (s *BusinessService) TopClicks(ctx context.Context, limit int, near *domain.Coordinate, radiusKm float64) ([]domain.Business, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	filter := domain.BusinessFilter{ClickedOnly: true, Sort: domain.SortClickCountDesc}

	if near != nil {
		if !near.Valid() || radiusKm <= 0 {
			return nil, fmt.Errorf("%w: need a valid point and positive radius", domain.ErrInvalidFilter)
		}
		box := geospatial.BoundingBoxKm(*near, radiusKm)
		filter.LatRange = &domain.Range{Min: box.MinLat, Max: box.MaxLat}
		filter.LongRanges = box.LongitudeRanges()
		return s.businesses.Find(ctx, filter, domain.Page{Limit: limit})
	}

	var cached []domain.Business
	if s.getCached(ctx, topClicksKey(limit), "top_clicks", &cached) {
		return cached, nil
	}
	out, err := s.businesses.Find(ctx, filter, domain.Page{Limit: limit})
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, topClicksKey(limit), out, clicksTTL)
	return out, nil
}

// WarmTopClicks recomputes the unrestricted top-clicks list into the cache.
func (s *BusinessService) WarmTopClicks(ctx context.Context, limit int) (int, error) {
	out, err := s.businesses.Find(ctx,
		domain.BusinessFilter{ClickedOnly: true, Sort: domain.SortClickCountDesc},
		domain.Page{Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("top clicks: %w", err)
	}
	s.setCached(ctx, topClicksKey(limit), out, clicksTTL)
	return len(out), nil
}

// RecentClicks returns the most recently clicked businesses.
func (s *BusinessService) RecentClicks(ctx context.Context, limit int) ([]domain.Business, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.businesses.Find(ctx,
		domain.BusinessFilter{ClickedOnly: true, Sort: domain.SortLastClickedDesc},
		domain.Page{Limit: limit})
}

// Stats returns the directory aggregate, computing it on a cache miss.
func (s *BusinessService) Stats(ctx context.Context) (*domain.DirectoryStats, error) {
	var st domain.DirectoryStats
	if s.getCached(ctx, StatsCacheKey, "stats", &st) {
		return &st, nil
	}
	return s.RefreshStats(ctx)
}

// RefreshStats counts the directory and stores the result in the cache.
func (s *BusinessService) RefreshStats(ctx context.Context) (*domain.DirectoryStats, error) {
	n, err := s.businesses.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count businesses: %w", err)
	}
	st := &domain.DirectoryStats{TotalBusinesses: n, RefreshedAt: s.now().UTC()}
	s.setCached(ctx, StatsCacheKey, st, statsTTL)
	return st, nil
}

// RecordClick bumps the click history of a business and announces it.
func (s *BusinessService) RecordClick(ctx context.Context, id string) (*domain.Business, error) {
	at := s.now().UTC()
	b, err := s.businesses.RecordClick(ctx, id, at)
	if err != nil {
		return nil, err
	}
	metrics.ClicksRecorded.Inc()

	if s.cache != nil {
		_ = s.cache.Delete(ctx, businessKey(id))
	}
	if s.events != nil {
		ev := &domain.BusinessClicked{BusinessID: id, ClickedAt: at}
		if b.ClickCount != nil {
			ev.ClickCount = *b.ClickCount
		}
		if err := s.events.PublishBusinessClicked(ctx, ev); err != nil {
			slog.WarnContext(ctx, "publish click event failed", "business_id", id, "error", err)
		}
	}
	return b, nil
}

// Invalidate drops cached entries for a business changed elsewhere.
func (s *BusinessService) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	return errors.Join(
		s.cache.Delete(ctx, businessKey(id)),
		s.cache.Delete(ctx, StatsCacheKey),
	)
}

func (s *BusinessService) getCached(ctx context.Context, key, op string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil && json.Unmarshal(data, v) == nil {
		metrics.CacheHits.WithLabelValues(op).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return false
}

func (s *BusinessService) setCached(ctx context.Context, key string, v any, ttl int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttl)
	}
}
