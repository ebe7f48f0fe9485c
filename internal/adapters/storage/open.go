// Package storage opens the business store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/supportyourlocal/mapdir/internal/adapters/mongo"
	"github.com/supportyourlocal/mapdir/internal/adapters/postgres"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

// Store is an open business store.
type Store struct {
	Businesses ports.BusinessRepository
	// Postgres is set only for the postgres driver.
	Postgres *postgres.DB

	ping  func(ctx context.Context) error
	close func()
}

// Open connects to the store named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		db, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Store{
			Businesses: postgres.NewBusinessRepo(db),
			Postgres:   db,
			ping:       db.Ping,
			close:      db.Close,
		}, nil
	case config.DriverMongo:
		st, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return &Store{
			Businesses: st,
			ping:       st.Ping,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = st.Close(ctx)
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Ping checks the store is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the connection.
func (s *Store) Close() { s.close() }

// ReportPoolMetrics exports pool gauges until ctx ends. It is a no-op for
// drivers without a pool to report.
func (s *Store) ReportPoolMetrics(ctx context.Context, interval time.Duration) {
	if s.Postgres != nil {
		s.Postgres.ReportPoolMetrics(ctx, interval)
	}
}
