package entitlement

import (
	"github.com/google/uuid"

	"github.com/talentsift/backend/internal/domain/shared"
)

// Entitlement is the per-tenant billing entitlement record. It is the only
// aggregate mutated by both the webhook path and the request path, so every
// write must go through the repository's atomic primitives.
type Entitlement struct {
	shared.BaseAggregateRoot
	TenantID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Subscribed       bool      `gorm:"not null;default:false"`
	StripeCustomerID string    `gorm:"size:255;index"`
	UsageCount       int64     `gorm:"not null;default:0"`
}

// NewEntitlement creates a default entitlement record for a tenant.
// New tenants start on the free tier with zero usage.
func NewEntitlement(tenantID uuid.UUID) (*Entitlement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	return &Entitlement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		Subscribed:        false,
		UsageCount:        0,
	}, nil
}

// Activate marks the tenant as subscribed and records the billing customer
// linkage. Re-applying the same activation is a no-op beyond the overwrite,
// which keeps redelivered checkout events idempotent.
func (e *Entitlement) Activate(stripeCustomerID string) error {
	if stripeCustomerID == "" {
		return shared.ErrInvalidInput
	}
	e.Subscribed = true
	e.StripeCustomerID = stripeCustomerID
	e.AddDomainEvent(NewSubscriptionActivatedEvent(e.GetID(), e.TenantID, stripeCustomerID))
	return nil
}

// Deactivate clears the subscription flag. The stripe customer id is kept so
// a returning subscriber stays linked to the same billing customer.
func (e *Entitlement) Deactivate() {
	e.Subscribed = false
	e.AddDomainEvent(NewSubscriptionCancelledEvent(e.GetID(), e.TenantID, e.StripeCustomerID))
}

// HasBillingCustomer reports whether a checkout has ever been applied for
// this tenant.
func (e *Entitlement) HasBillingCustomer() bool {
	return e.StripeCustomerID != ""
}

// RemainingFreeAnalyses returns how many free-tier analyses are left given
// the configured limit. Zero for subscribed tenants is meaningless and the
// caller should not display it.
func (e *Entitlement) RemainingFreeAnalyses(freeLimit int64) int64 {
	remaining := freeLimit - e.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
