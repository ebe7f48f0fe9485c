package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	natsadapter "github.com/supportyourlocal/mapdir/internal/adapters/nats"
	"github.com/supportyourlocal/mapdir/internal/adapters/postgres"
	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/ingest"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

const batchSize = 500

// Manifest lists the directory exports to import.
type Manifest struct {
	Sources []SourceEntry `json:"sources"`
}

// SourceEntry is one export. Exactly one of URL and Path is set.
type SourceEntry struct {
	Slug   string `json:"slug"`
	Format string `json:"format"` // geojson or csv
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
}

func main() {
	cfg, err := config.Load("mapdir-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewBusinessRepo(db)

	// Running API instances drop cached copies of changed records.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Printf("nats unavailable, API caches expire on their own: %v", err)
	} else {
		defer pub.Close()
	}

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	// Optional slug filter.
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	log.Printf("mapdir ingestor: %d sources from %s", len(manifest.Sources), manifestPath)

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)

	for _, src := range manifest.Sources {
		if len(slugFilter) > 0 && !slugFilter[src.Slug] {
			continue
		}
		wg.Add(1)
		go func(s SourceEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestSource(ctx, repo, pub, client, s); err != nil {
				log.Printf("ERROR [%s]: %v", s.Slug, err)
			}
		}(src)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

func ingestSource(ctx context.Context, repo *postgres.BusinessRepo, pub *natsadapter.Publisher, client *http.Client, src SourceEntry) error {
	body, err := fetch(client, src)
	if err != nil {
		return err
	}

	var (
		records []domain.Business
		skipped []ingest.Skipped
	)
	switch src.Format {
	case "geojson", "":
		records, skipped, err = ingest.ParseGeoJSON(body, src.Slug)
	case "csv":
		records, skipped, err = ingest.ParseCSV(bytes.NewReader(body), src.Slug)
	default:
		return fmt.Errorf("unknown format %q", src.Format)
	}
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Printf("[%s] skip #%d: %s", src.Slug, s.Index, s.Reason)
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		if err := repo.UpsertBatch(ctx, records[start:end]); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		if pub != nil {
			for _, b := range records[start:end] {
				if err := pub.PublishBusinessChanged(ctx, b.ID); err != nil {
					log.Printf("[%s] publish %s: %v", src.Slug, b.ID, err)
				}
			}
		}
		log.Printf("[%s] %d/%d upserted", src.Slug, end, len(records))
	}

	log.Printf("[%s] done: %d imported, %d skipped", src.Slug, len(records), len(skipped))
	return nil
}

func fetch(client *http.Client, src SourceEntry) ([]byte, error) {
	if src.Path != "" {
		return os.ReadFile(src.Path)
	}
	log.Printf("[%s] downloading %s", src.Slug, src.URL)
	resp, err := client.Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src.URL)
	}
	return io.ReadAll(resp.Body)
}
