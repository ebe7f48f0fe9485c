package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// --- Mock BusinessRepository ---

type mockBusinessRepo struct {
	mu          sync.Mutex
	findCalls   int
	findFn      func(ctx context.Context, filter domain.BusinessFilter, page domain.Page) ([]domain.Business, error)
	countAllFn  func(ctx context.Context) (int64, error)
	getByIDFn   func(ctx context.Context, id string) (*domain.Business, error)
	getByIDsFn  func(ctx context.Context, ids []string) ([]domain.Business, error)
	recordFn    func(ctx context.Context, id string, at time.Time) (*domain.Business, error)
	lastFilter  domain.BusinessFilter
	lastPage    domain.Page
}

func (m *mockBusinessRepo) Find(ctx context.Context, filter domain.BusinessFilter, page domain.Page) ([]domain.Business, error) {
	m.mu.Lock()
	m.findCalls++
	m.lastFilter = filter
	m.lastPage = page
	m.mu.Unlock()
	if m.findFn != nil {
		return m.findFn(ctx, filter, page)
	}
	return nil, nil
}

func (m *mockBusinessRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findCalls
}

func (m *mockBusinessRepo) CountAll(ctx context.Context) (int64, error) {
	if m.countAllFn != nil {
		return m.countAllFn(ctx)
	}
	return 0, nil
}

func (m *mockBusinessRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockBusinessRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockBusinessRepo) RecordClick(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
	if m.recordFn != nil {
		return m.recordFn(ctx, id, at)
	}
	return nil, domain.ErrNotFound
}

// --- In-memory cache ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// --- Mock publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.BusinessClicked
	err    error
}

func (p *mockPublisher) PublishBusinessClicked(ctx context.Context, ev *domain.BusinessClicked) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return p.err
}

// --- Fixtures ---

func biz(id, name string, lat, lng float64) domain.Business {
	return domain.Business{ID: id, Name: name, Location: domain.Coordinate{Latitude: lat, Longitude: lng}}
}

// berlinView is a small viewport around Berlin Mitte.
var berlinView = domain.ViewportBounds{MinLat: 52.45, MaxLat: 52.58, MinLong: 13.30, MaxLong: 13.50}

func intPtr(v int) *int { return &v }
