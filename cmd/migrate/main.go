package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/supportyourlocal/mapdir/internal/adapters/postgres"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("mapdir-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatalf("migrations apply to the postgres driver only, got %q", cfg.Database.Driver)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if _, err := db.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runUp(ctx, db)
	case "down":
		runDown(ctx, db)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// upFiles lists the forward migrations in name order.
func upFiles() []string {
	all, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	var files []string
	for _, f := range all {
		if !strings.HasSuffix(f, ".down.sql") {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

func runUp(ctx context.Context, db *postgres.DB) {
	for _, f := range upFiles() {
		name := filepath.Base(f)
		var applied bool
		if err := db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&applied); err != nil {
			log.Fatalf("check %s: %v", name, err)
		}
		if applied {
			fmt.Printf("--  %s\n", name)
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
		fmt.Printf("OK  %s\n", name)
	}
	log.Println("all migrations applied")
}

// runDown reverts the most recently applied migration.
func runDown(ctx context.Context, db *postgres.DB) {
	var name string
	err := db.Pool.QueryRow(ctx,
		`SELECT name FROM schema_migrations ORDER BY name DESC LIMIT 1`).Scan(&name)
	if err == pgx.ErrNoRows {
		log.Println("nothing to revert")
		return
	}
	if err != nil {
		log.Fatalf("latest migration: %v", err)
	}

	down := filepath.Join(migrationsDir, strings.TrimSuffix(name, ".sql")+".down.sql")
	data, err := os.ReadFile(down)
	if err != nil {
		log.Fatalf("read %s: %v", down, err)
	}
	err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
		return err
	})
	if err != nil {
		log.Fatalf("exec %s: %v", down, err)
	}
	fmt.Printf("OK  %s\n", filepath.Base(down))
}
