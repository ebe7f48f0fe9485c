//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	handler "github.com/supportyourlocal/mapdir/internal/adapters/http"
	"github.com/supportyourlocal/mapdir/internal/adapters/postgres"
	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

// setupTestDB connects to the database named by the mapdir-test config.
// The schema must already be migrated.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// seedBusinesses upserts fixtures under a per-run id prefix and removes them
// after the test.
func seedBusinesses(t *testing.T, db *postgres.DB, bs []domain.Business) string {
	prefix := fmt.Sprintf("it-%d-", time.Now().UnixNano())
	repo := postgres.NewBusinessRepo(db)
	for _, b := range bs {
		b.ID = prefix + b.ID
		if err := repo.Upsert(context.Background(), &b); err != nil {
			t.Fatalf("seed %s: %v", b.ID, err)
		}
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM businesses WHERE id LIKE $1`, prefix+"%")
	})
	return prefix
}

func setupIntegrationDeps(db *postgres.DB) *handler.Dependencies {
	repo := postgres.NewBusinessRepo(db)
	return &handler.Dependencies{
		Search:     usecases.NewSearchService(repo, nil, 500, 0),
		Ranking:    usecases.NewRankingService(),
		Businesses: usecases.NewBusinessService(repo, nil, nil),
		Store:      db,
		Settings:   handler.DefaultSettings(),
	}
}

func TestSearchBusinesses_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	prefix := seedBusinesses(t, db, []domain.Business{
		{ID: "in", Name: "Integration Bäckerei", Location: domain.Coordinate{Latitude: 52.5200, Longitude: 13.4050}},
		{ID: "edge", Name: "Integration Edge", Location: domain.Coordinate{Latitude: 52.6000, Longitude: 13.4050}},
		{ID: "out", Name: "Integration Munich", Location: domain.Coordinate{Latitude: 48.1370, Longitude: 11.5750}},
	})
	app := setupApp(setupIntegrationDeps(db))

	req := httptest.NewRequest("GET", "/v1/businesses/search?"+berlinBounds+"&q=integration", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Bounds are exclusive: the record on max_lat is not returned.
	if len(result.Businesses) != 1 || result.Businesses[0].ID != prefix+"in" {
		t.Errorf("expected only %sin, got %+v", prefix, result.Businesses)
	}
}

func TestRecordClick_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	prefix := seedBusinesses(t, db, []domain.Business{
		{ID: "click", Name: "Integration Click", Location: domain.Coordinate{Latitude: 52.52, Longitude: 13.40}},
	})
	app := setupApp(setupIntegrationDeps(db))

	for want := 1; want <= 2; want++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/v1/businesses/"+prefix+"click/clicks", nil), -1)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var b domain.Business
		if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if b.ClickCount == nil || *b.ClickCount != want {
			t.Fatalf("expected click_count %d, got %v", want, b.ClickCount)
		}
	}
}

func TestGetBusiness_Integration_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupIntegrationDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/businesses/does-not-exist", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
