package screening

import (
	"context"

	"github.com/google/uuid"

	"github.com/talentsift/backend/internal/domain/shared"
)

// ReportRepository defines persistence operations for screening reports
type ReportRepository interface {
	// Save persists a completed report
	Save(ctx context.Context, report *Report) error

	// FindByID returns a report by id, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*Report, error)

	// FindByOwner returns one page of a tenant's reports, newest first
	FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (shared.Paginated[*Report], error)

	// FindAll returns every report across tenants, for the admin analytics view
	FindAll(ctx context.Context) ([]*Report, error)
}
