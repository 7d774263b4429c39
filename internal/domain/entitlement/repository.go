package entitlement

import (
	"context"

	"github.com/google/uuid"
)

// EntitlementRepository defines persistence operations for entitlement
// records. Implementations must make each operation atomic with respect to
// concurrent writers on the same tenant; read-then-write from callers is a
// correctness violation.
type EntitlementRepository interface {
	// GetOrCreate returns the tenant's entitlement record, creating the
	// free-tier default on first access.
	GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*Entitlement, error)

	// SetSubscription upserts the subscription state with merge semantics:
	// a nil stripeCustomerID preserves whatever is already stored.
	SetSubscription(ctx context.Context, tenantID uuid.UUID, subscribed bool, stripeCustomerID *string) error

	// IncrementUsage atomically increments the usage counter and returns
	// the new count. Concurrent increments for the same tenant must all be
	// reflected, never lost.
	IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// FindByStripeCustomerID returns every entitlement record linked to the
	// given billing customer. Cancellation events carry only the customer
	// id, so this is the reverse lookup used by the fan-out downgrade.
	FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]*Entitlement, error)
}
