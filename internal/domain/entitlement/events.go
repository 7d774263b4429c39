package entitlement

import (
	"github.com/google/uuid"

	"github.com/talentsift/backend/internal/domain/shared"
)

// Event types published by the entitlement subsystem
const (
	EventTypeSubscriptionActivated = "entitlement.subscription_activated"
	EventTypeSubscriptionCancelled = "entitlement.subscription_cancelled"
	EventTypeUsageRecorded         = "entitlement.usage_recorded"
)

// AggregateTypeEntitlement identifies the aggregate in event envelopes
const AggregateTypeEntitlement = "Entitlement"

// SubscriptionActivatedEvent is published when a checkout completes and the
// tenant gains unmetered access
type SubscriptionActivatedEvent struct {
	shared.BaseDomainEvent
	StripeCustomerID string `json:"stripe_customer_id"`
}

// NewSubscriptionActivatedEvent creates a subscription activated event
func NewSubscriptionActivatedEvent(entitlementID, tenantID uuid.UUID, stripeCustomerID string) *SubscriptionActivatedEvent {
	return &SubscriptionActivatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSubscriptionActivated, AggregateTypeEntitlement, entitlementID, tenantID),
		StripeCustomerID: stripeCustomerID,
	}
}

// SubscriptionCancelledEvent is published when a subscription is cancelled
// and the tenant falls back to the free tier
type SubscriptionCancelledEvent struct {
	shared.BaseDomainEvent
	StripeCustomerID string `json:"stripe_customer_id"`
}

// NewSubscriptionCancelledEvent creates a subscription cancelled event
func NewSubscriptionCancelledEvent(entitlementID, tenantID uuid.UUID, stripeCustomerID string) *SubscriptionCancelledEvent {
	return &SubscriptionCancelledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSubscriptionCancelled, AggregateTypeEntitlement, entitlementID, tenantID),
		StripeCustomerID: stripeCustomerID,
	}
}

// UsageRecordedEvent is published after a successful billable analysis
// consumes one unit of quota
type UsageRecordedEvent struct {
	shared.BaseDomainEvent
	UsageCount int64 `json:"usage_count"`
}

// NewUsageRecordedEvent creates a usage recorded event
func NewUsageRecordedEvent(entitlementID, tenantID uuid.UUID, usageCount int64) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageRecorded, AggregateTypeEntitlement, entitlementID, tenantID),
		UsageCount:      usageCount,
	}
}
