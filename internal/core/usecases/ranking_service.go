package usecases

import (
	"cmp"
	"slices"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
)

// RankingService orders businesses by distance from a reference point.
type RankingService struct{}

// NewRankingService creates a RankingService.
func NewRankingService() *RankingService {
	return &RankingService{}
}

// Rank returns a copy of points sorted by ascending distance from ref, with
// Distance (miles) filled in. Ties keep their input order.
func (s *RankingService) Rank(points []domain.Business, ref domain.Coordinate) []domain.Business {
	type ranked struct {
		b    domain.Business
		dist float64
	}
	tmp := make([]ranked, len(points))
	for i, p := range points {
		tmp[i] = ranked{b: p, dist: geospatial.Distance(p.Location, ref)}
	}
	slices.SortStableFunc(tmp, func(a, b ranked) int {
		return cmp.Compare(a.dist, b.dist)
	})

	out := make([]domain.Business, len(tmp))
	for i, r := range tmp {
		d := r.dist
		out[i] = r.b
		out[i].Distance = &d
	}
	return out
}

// Best returns the business nearest to ref.
func (s *RankingService) Best(points []domain.Business, ref domain.Coordinate) (domain.Business, bool) {
	if len(points) == 0 {
		return domain.Business{}, false
	}
	return s.Rank(points, ref)[0], true
}
