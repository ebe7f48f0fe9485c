package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/supportyourlocal/mapdir/internal/adapters/storage"
	"github.com/supportyourlocal/mapdir/internal/adapters/valkey"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
	"github.com/supportyourlocal/mapdir/internal/pkg/logging"
	"github.com/supportyourlocal/mapdir/internal/workflows"
)

func main() {
	cfg, err := config.Load("mapdir-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	// The refresh only pays off with a shared cache, but a bare count is
	// still logged without one.
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, refreshed stats will not be shared", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.StatsRefreshWorkflow)
	w.RegisterActivity(&workflows.StatsActivities{
		Businesses: usecases.NewBusinessService(store.Businesses, cache, nil),
	})

	run, err := workflows.ScheduleStatsRefresh(ctx, c, cfg.Temporal.TaskQueue, cfg.Temporal.StatsCron,
		workflows.StatsRefreshInput{TopClicksLimit: cfg.Temporal.TopClicksMax})
	if err != nil {
		log.Fatalf("schedule stats refresh: %v", err)
	}
	slog.Info("stats refresh scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", cfg.Temporal.StatsCron)

	slog.Info("stats worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
