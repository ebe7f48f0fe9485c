package usecases_test

import (
	"testing"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
)

func TestRankingService_Rank(t *testing.T) {
	center := domain.Coordinate{Latitude: 52.52, Longitude: 13.405}
	points := []domain.Business{
		biz("far", "Far", 52.60, 13.50),
		biz("near", "Near", 52.521, 13.406),
		biz("mid", "Mid", 52.55, 13.40),
	}

	ranked := usecases.NewRankingService().Rank(points, center)

	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, ranked[i].ID)
		}
		if ranked[i].Distance == nil {
			t.Fatalf("position %d: distance not set", i)
		}
	}
	if *ranked[0].Distance > *ranked[1].Distance || *ranked[1].Distance > *ranked[2].Distance {
		t.Error("distances are not ascending")
	}
	if points[0].ID != "far" || points[0].Distance != nil {
		t.Error("input slice must not be modified")
	}
}

func TestRankingService_StableAndIdempotent(t *testing.T) {
	center := domain.Coordinate{Latitude: 52.52, Longitude: 13.405}
	// Three records sharing one location tie on distance.
	points := []domain.Business{
		biz("x", "X", 52.53, 13.41),
		biz("a", "A", 52.53, 13.41),
		biz("m", "M", 52.53, 13.41),
		biz("near", "Near", 52.52, 13.405),
	}
	svc := usecases.NewRankingService()

	first := svc.Rank(points, center)
	second := svc.Rank(first, center)

	want := []string{"near", "x", "a", "m"}
	for i, id := range want {
		if first[i].ID != id {
			t.Errorf("first pass position %d: expected %s, got %s", i, id, first[i].ID)
		}
		if second[i].ID != first[i].ID {
			t.Errorf("re-ranking changed position %d: %s -> %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestRankingService_Best(t *testing.T) {
	svc := usecases.NewRankingService()
	if _, ok := svc.Best(nil, domain.Coordinate{}); ok {
		t.Error("expected no best match for an empty set")
	}

	best, ok := svc.Best([]domain.Business{
		biz("a", "A", 10, 10),
		biz("b", "B", 1, 1),
	}, domain.Coordinate{})
	if !ok || best.ID != "b" {
		t.Errorf("expected b, got %+v", best)
	}
}
