package usecases

import (
	"context"
	"log/slog"
	"strings"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
)

// duplicateMiles is how close an external result must be to a local one with
// the same title to be treated as the same place.
const duplicateMiles = 0.05

// LocalLookup finds directory entries matching free text.
type LocalLookup interface {
	Lookup(query string) []domain.GeocodeResult
}

// GeocodeService merges local directory matches with an external geocoder.
type GeocodeService struct {
	geocoder ports.Geocoder
}

// NewGeocodeService creates a GeocodeService; geocoder may be nil, in which
// case only local results are returned.
func NewGeocodeService(geocoder ports.Geocoder) *GeocodeService {
	return &GeocodeService{geocoder: geocoder}
}

// Forward returns local matches first, then external ones. External results
// that repeat a local match are dropped. An external failure is logged and
// the local matches are still returned.
func (s *GeocodeService) Forward(ctx context.Context, query string, local LocalLookup) []domain.GeocodeResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.GeocodeResult{}
	}

	out := []domain.GeocodeResult{}
	if local != nil {
		out = append(out, local.Lookup(query)...)
	}
	if s.geocoder == nil {
		return out
	}

	external, err := s.geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "external geocoder failed", "query", query, "error", err)
		return out
	}
	nLocal := len(out)
	for _, r := range external {
		if duplicates(out[:nLocal], r) {
			continue
		}
		r.Source = domain.GeocodeExternal
		out = append(out, r)
	}
	return out
}

func duplicates(local []domain.GeocodeResult, r domain.GeocodeResult) bool {
	for _, l := range local {
		if strings.EqualFold(strings.TrimSpace(l.Title), strings.TrimSpace(r.Title)) &&
			geospatial.Distance(l.Coordinate, r.Coordinate) <= duplicateMiles {
			return true
		}
	}
	return false
}
