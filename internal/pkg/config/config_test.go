package config_test

import (
	"os"
	"strings"
	"testing"

	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Search.MaxRangeMiles != 500 || cfg.Search.ExtendCapMiles != 400 || cfg.Search.BufferDegrees != 0.5 {
		t.Errorf("unexpected search thresholds %+v", cfg.Search)
	}
	if cfg.Search.Debounce().Milliseconds() != 500 {
		t.Errorf("expected 500ms debounce, got %v", cfg.Search.Debounce())
	}
	if cfg.Cluster.MaxZoom != 11 || cfg.Cluster.RadiusPx != 50 {
		t.Errorf("unexpected cluster defaults %+v", cfg.Cluster)
	}
	if cfg.Telemetry.ServiceName != "mapdir-test" {
		t.Errorf("expected service name mapdir-test, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("MAPDIR_SERVER_PORT", "9090")
	t.Setenv("MAPDIR_SEARCH_MAX_RANGE_MILES", "250")
	t.Setenv("MAPDIR_DATABASE_DRIVER", "mongo")

	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Search.MaxRangeMiles != 250 {
		t.Errorf("expected 250, got %v", cfg.Search.MaxRangeMiles)
	}
	if cfg.Database.Driver != config.DriverMongo {
		t.Errorf("expected mongo driver, got %q", cfg.Database.Driver)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	inTempDir(t)
	if err := os.WriteFile(".env", []byte("MAPDIR_VALKEY_ADDR=cache:6380\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("MAPDIR_VALKEY_ADDR") })

	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Valkey.Addr != "cache:6380" {
		t.Errorf("expected .env value, got %q", cfg.Valkey.Addr)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	inTempDir(t)
	yaml := "search:\n  buffer_degrees: 1.25\ncluster:\n  max_zoom: 14\n"
	if err := os.WriteFile("config.yaml", []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.BufferDegrees != 1.25 {
		t.Errorf("expected 1.25, got %v", cfg.Search.BufferDegrees)
	}
	if cfg.Cluster.MaxZoom != 14 {
		t.Errorf("expected 14, got %d", cfg.Cluster.MaxZoom)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	inTempDir(t)
	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Server.Port = 0
	cfg.Database.Driver = "sqlite"
	cfg.Search.MaxRangeMiles = 0
	cfg.Cluster.RadiusPx = -1
	cfg.Geocoder.Enabled = true

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"server.port",
		"database.driver",
		"search.max_range_miles",
		"cluster.radius_px",
		"geocoder.access_token",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got:\n%s", want, err)
		}
	}
}

func TestValidate_PageSizeWithinMax(t *testing.T) {
	inTempDir(t)
	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Search.DefaultPageSize = cfg.Search.MaxPageSize + 1

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "default_page_size") {
		t.Errorf("expected page size error, got %v", err)
	}
}

func TestValidate_ViewportMaxPages(t *testing.T) {
	inTempDir(t)
	cfg, err := config.Load("mapdir-test")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.ViewportMaxPages != 50 {
		t.Errorf("expected default of 50 pages, got %d", cfg.Search.ViewportMaxPages)
	}
	cfg.Search.ViewportMaxPages = 0

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "viewport_max_pages") {
		t.Errorf("expected page cap error, got %v", err)
	}
}
