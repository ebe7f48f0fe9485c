package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// StatsRefreshWorkflowID is the fixed id of the cron run, so restarting the
// worker attaches to the existing schedule instead of adding another.
const StatsRefreshWorkflowID = "mapdir-stats-refresh"

// StatsRefreshInput is the input for the stats refresh workflow.
type StatsRefreshInput struct {
	TopClicksLimit int
}

// StatsRefreshResult reports what one run refreshed.
type StatsRefreshResult struct {
	TotalBusinesses int64
	TopClicksWarmed int
}

// StatsRefreshWorkflow recounts the directory and rewarms the top-clicks
// cache. A failed warm-up is logged; the count is what the map header shows.
func StatsRefreshWorkflow(ctx workflow.Context, input StatsRefreshInput) (StatsRefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting stats refresh", "topClicksLimit", input.TopClicksLimit)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var res StatsRefreshResult
	if err := workflow.ExecuteActivity(ctx, "RefreshStats").Get(ctx, &res.TotalBusinesses); err != nil {
		return res, err
	}

	if input.TopClicksLimit > 0 {
		err := workflow.ExecuteActivity(ctx, "WarmTopClicks", input.TopClicksLimit).Get(ctx, &res.TopClicksWarmed)
		if err != nil {
			logger.Warn("top clicks warm-up failed", "error", err)
		}
	}

	logger.Info("Stats refreshed", "total", res.TotalBusinesses, "topClicks", res.TopClicksWarmed)
	return res, nil
}

// ScheduleStatsRefresh starts the cron run of StatsRefreshWorkflow on queue.
// If the run already exists the call attaches to it.
func ScheduleStatsRefresh(ctx context.Context, c client.Client, queue, cron string, input StatsRefreshInput) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           StatsRefreshWorkflowID,
		TaskQueue:    queue,
		CronSchedule: cron,
	}, StatsRefreshWorkflow, input)
}
