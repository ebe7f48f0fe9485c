package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
)

func TestBusinessService_GetByID_CachesRecord(t *testing.T) {
	calls := 0
	repo := &mockBusinessRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Business, error) {
			calls++
			b := biz(id, "Café Adler", 52.5, 13.4)
			return &b, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewBusinessService(repo, cache, nil)

	for i := 0; i < 3; i++ {
		got, err := svc.GetByID(context.Background(), "42")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "Café Adler" {
			t.Errorf("expected Café Adler, got %s", got.Name)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 store call, got %d", calls)
	}
	if !cache.has("businesses:id:42") {
		t.Error("expected record to be cached")
	}
}

func TestBusinessService_GetByID_NotFound(t *testing.T) {
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, nil)

	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetByID(context.Background(), ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestBusinessService_List(t *testing.T) {
	repo := &mockBusinessRepo{}
	svc := usecases.NewBusinessService(repo, nil, nil)

	if _, err := svc.List(context.Background(), -5, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastPage.Skip != 0 || repo.lastPage.Limit != 20 {
		t.Errorf("expected skip 0 limit 20, got %+v", repo.lastPage)
	}
	if repo.lastFilter.LatRange != nil || len(repo.lastFilter.LongRanges) != 0 {
		t.Errorf("expected unfiltered listing, got %+v", repo.lastFilter)
	}

	if _, err := svc.List(context.Background(), 0, 0); !errors.Is(err, domain.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage, got %v", err)
	}
}

func TestBusinessService_TopClicks(t *testing.T) {
	repo := &mockBusinessRepo{
		findFn: func(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
			b := biz("1", "Popular", 52.5, 13.4)
			b.ClickCount = intPtr(12)
			return []domain.Business{b}, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewBusinessService(repo, cache, nil)

	got, err := svc.TopClicks(context.Background(), 0, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if repo.lastPage.Limit != 10 {
		t.Errorf("expected default limit 10, got %d", repo.lastPage.Limit)
	}
	if !repo.lastFilter.ClickedOnly || repo.lastFilter.Sort != domain.SortClickCountDesc {
		t.Errorf("unexpected filter %+v", repo.lastFilter)
	}

	if _, err := svc.TopClicks(context.Background(), 10, nil, 0); err != nil {
		t.Fatal(err)
	}
	if repo.calls() != 1 {
		t.Errorf("expected second call to hit the cache, got %d store calls", repo.calls())
	}
}

func TestBusinessService_TopClicksNear(t *testing.T) {
	repo := &mockBusinessRepo{}
	svc := usecases.NewBusinessService(repo, newMemCache(), nil)
	berlin := domain.Coordinate{Latitude: 52.52, Longitude: 13.405}

	if _, err := svc.TopClicks(context.Background(), 5, &berlin, 25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := repo.lastFilter
	if f.LatRange == nil || len(f.LongRanges) != 1 {
		t.Fatalf("expected a bounding box filter, got %+v", f)
	}
	if f.LatRange.Min >= 52.52 || f.LatRange.Max <= 52.52 {
		t.Errorf("lat range %+v does not contain the point", f.LatRange)
	}

	if _, err := svc.TopClicks(context.Background(), 5, &berlin, 0); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for zero radius, got %v", err)
	}
	bad := domain.Coordinate{Latitude: 91, Longitude: 0}
	if _, err := svc.TopClicks(context.Background(), 5, &bad, 10); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for invalid point, got %v", err)
	}
}

func TestBusinessService_RecentClicks(t *testing.T) {
	repo := &mockBusinessRepo{}
	svc := usecases.NewBusinessService(repo, nil, nil)

	if _, err := svc.RecentClicks(context.Background(), 500); err != nil {
		t.Fatal(err)
	}
	if repo.lastPage.Limit != 10 {
		t.Errorf("expected oversized limit to fall back to 10, got %d", repo.lastPage.Limit)
	}
	if repo.lastFilter.Sort != domain.SortLastClickedDesc {
		t.Errorf("expected last-clicked sort, got %q", repo.lastFilter.Sort)
	}
}

func TestBusinessService_Stats(t *testing.T) {
	counts := 0
	repo := &mockBusinessRepo{
		countAllFn: func(ctx context.Context) (int64, error) {
			counts++
			return 1234, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewBusinessService(repo, cache, nil)

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalBusinesses != 1234 {
		t.Errorf("expected 1234, got %d", st.TotalBusinesses)
	}
	if _, err := svc.Stats(context.Background()); err != nil {
		t.Fatal(err)
	}
	if counts != 1 {
		t.Errorf("expected cached stats on second call, got %d counts", counts)
	}

	if err := svc.Invalidate(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if cache.has(usecases.StatsCacheKey) {
		t.Error("expected stats to be invalidated")
	}
}

func TestBusinessService_StatsCountError(t *testing.T) {
	repo := &mockBusinessRepo{
		countAllFn: func(ctx context.Context) (int64, error) { return 0, errors.New("db down") },
	}
	svc := usecases.NewBusinessService(repo, newMemCache(), nil)

	if _, err := svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestBusinessService_RecordClick(t *testing.T) {
	var recordedAt time.Time
	repo := &mockBusinessRepo{
		recordFn: func(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
			recordedAt = at
			b := biz(id, "Café Adler", 52.5, 13.4)
			b.ClickCount = intPtr(7)
			b.LastClickedAt = &at
			return &b, nil
		},
	}
	cache := newMemCache()
	_ = cache.Set(context.Background(), "businesses:id:42", []byte(`{}`), 60)
	pub := &mockPublisher{}
	svc := usecases.NewBusinessService(repo, cache, pub)

	before := time.Now().UTC()
	got, err := svc.RecordClick(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.ClickCount != 7 {
		t.Errorf("expected count 7, got %d", *got.ClickCount)
	}
	if recordedAt.Before(before) || recordedAt.Location() != time.UTC {
		t.Errorf("expected a current UTC timestamp, got %v", recordedAt)
	}
	if cache.has("businesses:id:42") {
		t.Error("expected cached record to be dropped")
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if ev := pub.events[0]; ev.BusinessID != "42" || ev.ClickCount != 7 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestBusinessService_RecordClickPublishFailureIsNotFatal(t *testing.T) {
	repo := &mockBusinessRepo{
		recordFn: func(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
			b := biz(id, "Café Adler", 52.5, 13.4)
			return &b, nil
		},
	}
	pub := &mockPublisher{err: errors.New("nats unavailable")}
	svc := usecases.NewBusinessService(repo, nil, pub)

	if _, err := svc.RecordClick(context.Background(), "42"); err != nil {
		t.Errorf("expected publish failure to be swallowed, got %v", err)
	}
}

func TestBusinessService_RecordClickUnknown(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, pub)

	if _, err := svc.RecordClick(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected no event, got %d", len(pub.events))
	}
}

func TestBusinessService_Invalidate(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()
	_ = cache.Set(ctx, "businesses:id:42", []byte(`{}`), 60)
	_ = cache.Set(ctx, usecases.StatsCacheKey, []byte(`{}`), 60)
	_ = cache.Set(ctx, "businesses:id:43", []byte(`{}`), 60)
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, cache, nil)

	if err := svc.Invalidate(ctx, "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.has("businesses:id:42") || cache.has(usecases.StatsCacheKey) {
		t.Error("expected record and stats to be dropped")
	}
	if !cache.has("businesses:id:43") {
		t.Error("expected unrelated record to stay cached")
	}
}

func TestBusinessService_InvalidateWithoutCache(t *testing.T) {
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, nil)
	if err := svc.Invalidate(context.Background(), "42"); err != nil {
		t.Errorf("expected no error without a cache, got %v", err)
	}
}
