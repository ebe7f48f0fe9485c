package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
	"github.com/supportyourlocal/mapdir/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/supportyourlocal/mapdir/internal/core/usecases")

// Searcher executes a bounded business search.
type Searcher interface {
	Execute(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
}

// SearchService turns a SearchRequest into a bounded, paginated store query.
type SearchService struct {
	businesses    ports.BusinessRepository
	cache         ports.CacheService
	maxRangeMiles float64
	cacheTTL      int
}

// NewSearchService creates a SearchService. Requests whose diagonal exceeds
// maxRangeMiles are refused without touching the store. A cacheTTL of zero
// disables result caching.
func NewSearchService(businesses ports.BusinessRepository, cache ports.CacheService, maxRangeMiles float64, cacheTTL int) *SearchService {
	return &SearchService{
		businesses:    businesses,
		cache:         cache,
		maxRangeMiles: maxRangeMiles,
		cacheTTL:      cacheTTL,
	}
}

// MaxRangeMiles is the largest diagonal the service will query.
func (s *SearchService) MaxRangeMiles() float64 { return s.maxRangeMiles }

// Execute runs req against the store. Out-of-range and empty results are not
// errors; they are reported through SearchResult.Status.
func (s *SearchService) Execute(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "SearchService.Execute")
	defer span.End()
	start := time.Now()

	if req.PageSize <= 0 || req.PageNumber < 1 {
		return nil, fmt.Errorf("%w: page %d size %d", domain.ErrInvalidPage, req.PageNumber, req.PageSize)
	}
	if err := req.Bounds.ValidateWrapped(); err != nil {
		return nil, err
	}

	diagonal := geospatial.Diagonal(req.Bounds)
	span.SetAttributes(
		attribute.Float64("search.diagonal_miles", diagonal),
		attribute.Bool("search.has_text", req.TextQuery != ""),
		attribute.Int("search.page", req.PageNumber),
		attribute.Int("search.page_size", req.PageSize),
	)

	result := &domain.SearchResult{
		Businesses: []domain.Business{},
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
	}

	if diagonal > s.maxRangeMiles {
		result.Status = domain.SearchOutOfRange
		s.observe(result.Status, start)
		return result, nil
	}

	cacheKey := searchCacheKey(req)
	if s.cache != nil && s.cacheTTL > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached domain.SearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("search").Inc()
				s.observe(cached.Status, start)
				return &cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	filter := domain.FilterForBounds(req.Bounds, req.TextQuery)
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	businesses, err := s.businesses.Find(ctx, filter, req.Page())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find businesses")
		metrics.SearchErrors.Inc()
		return nil, fmt.Errorf("find businesses: %w", err)
	}

	if len(businesses) > 0 {
		result.Businesses = businesses
		result.Status = domain.SearchOK
	} else {
		result.Status = domain.SearchNoMatches
	}
	result.HasNextPage = len(businesses) == req.PageSize

	if s.cache != nil && s.cacheTTL > 0 {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	s.observe(result.Status, start)
	return result, nil
}

func (s *SearchService) observe(status domain.SearchStatus, start time.Time) {
	metrics.SearchesTotal.WithLabelValues(string(status)).Inc()
	metrics.SearchDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
}

func searchCacheKey(req domain.SearchRequest) string {
	b := req.Bounds
	return fmt.Sprintf("search:%.5f:%.5f:%.5f:%.5f:%s:%d:%d",
		b.MinLat, b.MaxLat, b.MinLong, b.MaxLong, req.TextQuery, req.PageNumber, req.PageSize)
}
