package workflows

import (
	"context"
	"fmt"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// StatsRefresher is the slice of the business service the refresh needs.
type StatsRefresher interface {
	RefreshStats(ctx context.Context) (*domain.DirectoryStats, error)
	WarmTopClicks(ctx context.Context, limit int) (int, error)
}

// StatsActivities holds the activity implementations for the stats refresh workflow.
type StatsActivities struct {
	Businesses StatsRefresher
}

// RefreshStats recounts the directory and returns the total.
func (a *StatsActivities) RefreshStats(ctx context.Context) (int64, error) {
	st, err := a.Businesses.RefreshStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh stats: %w", err)
	}
	return st.TotalBusinesses, nil
}

// WarmTopClicks recomputes the cached top-clicks list.
func (a *StatsActivities) WarmTopClicks(ctx context.Context, limit int) (int, error) {
	n, err := a.Businesses.WarmTopClicks(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("warm top clicks: %w", err)
	}
	return n, nil
}
