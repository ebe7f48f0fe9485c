package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// loadOpenAPISpec finds api/openapi.yaml above the test directory and parses it.
func loadOpenAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if data, err := os.ReadFile(candidate); err == nil {
			loader := &openapi3.Loader{IsExternalRefsAllowed: false}
			spec, err := loader.LoadFromData(data)
			if err != nil {
				t.Fatalf("failed to parse OpenAPI document: %v", err)
			}
			return spec
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return nil
}

func TestOpenAPISpec(t *testing.T) {
	spec := loadOpenAPISpec(t)
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	// Every REST route registered in SetupRoutes.
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/businesses",
		"/v1/businesses/search",
		"/v1/businesses/batch",
		"/v1/businesses/top-clicks",
		"/v1/businesses/recent-clicks",
		"/v1/businesses/{id}",
		"/v1/businesses/{id}/clicks",
		"/v1/stats",
		"/v1/clusters",
		"/v1/clusters/{id}/expansion-zoom",
		"/v1/geocode",
		"/v1/viewport/initial",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"Business",
		"Coordinate",
		"SearchResult",
		"DirectoryStats",
		"GeocodeResult",
		"InitialViewport",
		"FeatureCollection",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	if op := spec.Paths.Find("/v1/businesses").Get; op == nil || !op.Deprecated {
		t.Error("expected GET /v1/businesses to be marked deprecated")
	}
}

func TestOpenAPIInfo(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if spec.Info.Title != "mapdir Directory API" {
		t.Errorf("expected title 'mapdir Directory API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(spec.Servers) == 0 {
		t.Fatal("expected at least one server")
	}
}
