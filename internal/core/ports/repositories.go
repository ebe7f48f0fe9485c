package ports

import (
	"context"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// BusinessRepository is the read path into the business store.
type BusinessRepository interface {
	// Find returns the records matching filter, skipping page.Skip and
	// returning at most page.Limit. Order is store-defined unless
	// filter.Sort says otherwise.
	Find(ctx context.Context, filter domain.BusinessFilter, page domain.Page) ([]domain.Business, error)
	CountAll(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error)
	// RecordClick increments the click count and sets the last-clicked time.
	RecordClick(ctx context.Context, id string, at time.Time) (*domain.Business, error)
}
