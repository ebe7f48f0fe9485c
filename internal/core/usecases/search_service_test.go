package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
)

func mustRequest(t *testing.T, b domain.ViewportBounds, q string, page, size int) domain.SearchRequest {
	t.Helper()
	req, err := domain.NewSearchRequest(b, q, page, size)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func TestSearchService_Execute(t *testing.T) {
	repo := &mockBusinessRepo{
		findFn: func(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
			return []domain.Business{biz("1", "Café Adler", 52.5, 13.4)}, nil
		},
	}
	svc := usecases.NewSearchService(repo, nil, 500, 0)

	res, err := svc.Execute(context.Background(), mustRequest(t, berlinView, "  adler ", 1, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.SearchOK {
		t.Errorf("expected status ok, got %s", res.Status)
	}
	if len(res.Businesses) != 1 {
		t.Fatalf("expected 1 business, got %d", len(res.Businesses))
	}
	if res.HasNextPage {
		t.Error("expected no next page for a short page")
	}

	f := repo.lastFilter
	if f.NameContains != "adler" {
		t.Errorf("expected trimmed name filter 'adler', got %q", f.NameContains)
	}
	if f.LatRange == nil || f.LatRange.Min != berlinView.MinLat || f.LatRange.Max != berlinView.MaxLat {
		t.Errorf("unexpected latitude range %+v", f.LatRange)
	}
	if len(f.LongRanges) != 1 || f.LongRanges[0].Min != berlinView.MinLong || f.LongRanges[0].Max != berlinView.MaxLong {
		t.Errorf("unexpected longitude ranges %+v", f.LongRanges)
	}
	if repo.lastPage != (domain.Page{Skip: 0, Limit: 20}) {
		t.Errorf("unexpected page %+v", repo.lastPage)
	}
}

func TestSearchService_OutOfRangeSkipsStore(t *testing.T) {
	repo := &mockBusinessRepo{}
	svc := usecases.NewSearchService(repo, nil, 500, 0)

	huge := []domain.ViewportBounds{
		{MinLat: 35, MaxLat: 60, MinLong: -10, MaxLong: 30},
		{MinLat: -60, MaxLat: 60, MinLong: -170, MaxLong: 170},
		{MinLat: 47, MaxLat: 55, MinLong: 5, MaxLong: 15},
	}
	for _, b := range huge {
		res, err := svc.Execute(context.Background(), mustRequest(t, b, "anything", 1, 10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != domain.SearchOutOfRange {
			t.Errorf("expected out_of_range for %+v, got %s", b, res.Status)
		}
		if len(res.Businesses) != 0 {
			t.Errorf("expected empty result, got %d", len(res.Businesses))
		}
	}
	if repo.calls() != 0 {
		t.Errorf("store must not be queried, got %d calls", repo.calls())
	}
}

func TestSearchService_NoMatches(t *testing.T) {
	svc := usecases.NewSearchService(&mockBusinessRepo{}, nil, 500, 0)
	res, err := svc.Execute(context.Background(), mustRequest(t, berlinView, "", 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.SearchNoMatches {
		t.Errorf("expected no_matches, got %s", res.Status)
	}
}

func TestSearchService_Pagination(t *testing.T) {
	const n = 23
	store := make([]domain.Business, n)
	for i := range store {
		store[i] = biz(fmt.Sprintf("b%02d", i), "Shop", 52.5, 13.4)
	}
	repo := &mockBusinessRepo{
		findFn: func(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
			if p.Skip >= len(store) {
				return nil, nil
			}
			end := min(p.Skip+p.Limit, len(store))
			return store[p.Skip:end], nil
		},
	}
	svc := usecases.NewSearchService(repo, nil, 500, 0)

	cases := []struct {
		page, size   int
		wantFirst    string
		wantLen      int
		wantNextPage bool
	}{
		{1, 10, "b00", 10, true},
		{2, 10, "b10", 10, true},
		{3, 10, "b20", 3, false},
		{4, 10, "", 0, false},
		{5, 5, "b20", 3, false},
		{1, 23, "b00", 23, true},
	}
	for _, tc := range cases {
		res, err := svc.Execute(context.Background(), mustRequest(t, berlinView, "", tc.page, tc.size))
		if err != nil {
			t.Fatalf("page %d: unexpected error: %v", tc.page, err)
		}
		if len(res.Businesses) != tc.wantLen {
			t.Errorf("page %d size %d: expected %d results, got %d", tc.page, tc.size, tc.wantLen, len(res.Businesses))
			continue
		}
		if tc.wantLen > 0 && res.Businesses[0].ID != tc.wantFirst {
			t.Errorf("page %d size %d: expected first %s, got %s", tc.page, tc.size, tc.wantFirst, res.Businesses[0].ID)
		}
		if res.HasNextPage != tc.wantNextPage {
			t.Errorf("page %d size %d: expected has_next_page=%v", tc.page, tc.size, tc.wantNextPage)
		}
	}
}

func TestSearchService_StoreErrorSurfaces(t *testing.T) {
	boom := errors.New("connection refused")
	repo := &mockBusinessRepo{
		findFn: func(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
			return nil, boom
		},
	}
	svc := usecases.NewSearchService(repo, nil, 500, 0)

	_, err := svc.Execute(context.Background(), mustRequest(t, berlinView, "", 1, 10))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if repo.calls() != 1 {
		t.Errorf("expected exactly one attempt, got %d", repo.calls())
	}
}

func TestSearchService_RejectsZeroValueRequest(t *testing.T) {
	svc := usecases.NewSearchService(&mockBusinessRepo{}, nil, 500, 0)
	_, err := svc.Execute(context.Background(), domain.SearchRequest{Bounds: berlinView})
	if !errors.Is(err, domain.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestSearchService_AntimeridianUsesTwoRanges(t *testing.T) {
	repo := &mockBusinessRepo{}
	svc := usecases.NewSearchService(repo, nil, 500, 0)

	wrapped := domain.ViewportBounds{MinLat: -18, MaxLat: -17, MinLong: 179.5, MaxLong: -179.5}
	if _, err := svc.Execute(context.Background(), mustRequest(t, wrapped, "", 1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lr := repo.lastFilter.LongRanges
	if len(lr) != 2 {
		t.Fatalf("expected 2 longitude ranges, got %+v", lr)
	}
	if lr[0].Max != 180 || !lr[0].IncludeMax || lr[1].Min != -180 || !lr[1].IncludeMin {
		t.Errorf("expected both ranges closed at the antimeridian, got %+v", lr)
	}
	if lr[0].IncludeMin || lr[1].IncludeMax {
		t.Errorf("expected viewport edges to stay exclusive, got %+v", lr)
	}
}

func TestSearchService_CachesResults(t *testing.T) {
	repo := &mockBusinessRepo{
		findFn: func(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
			return []domain.Business{biz("1", "Café Adler", 52.5, 13.4)}, nil
		},
	}
	svc := usecases.NewSearchService(repo, newMemCache(), 500, 60)
	req := mustRequest(t, berlinView, "", 1, 10)

	for i := 0; i < 3; i++ {
		res, err := svc.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Businesses) != 1 || res.Status != domain.SearchOK {
			t.Fatalf("unexpected cached result %+v", res)
		}
	}
	if repo.calls() != 1 {
		t.Errorf("expected 1 store call, got %d", repo.calls())
	}
}

func TestNewSearchRequest_Validation(t *testing.T) {
	if _, err := domain.NewSearchRequest(berlinView, "", 0, 10); !errors.Is(err, domain.ErrInvalidPage) {
		t.Errorf("page 0: expected ErrInvalidPage, got %v", err)
	}
	if _, err := domain.NewSearchRequest(berlinView, "", 1, 0); !errors.Is(err, domain.ErrInvalidPage) {
		t.Errorf("size 0: expected ErrInvalidPage, got %v", err)
	}
	inverted := domain.ViewportBounds{MinLat: 53, MaxLat: 52, MinLong: 13, MaxLong: 14}
	if _, err := domain.NewSearchRequest(inverted, "", 1, 10); !errors.Is(err, domain.ErrInvalidBounds) {
		t.Errorf("inverted: expected ErrInvalidBounds, got %v", err)
	}
	req, err := domain.NewSearchRequest(berlinView, "x", 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Page() != (domain.Page{Skip: 20, Limit: 10}) {
		t.Errorf("unexpected page %+v", req.Page())
	}
}
