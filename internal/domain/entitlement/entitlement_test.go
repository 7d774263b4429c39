package entitlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/backend/internal/domain/shared"
)

func TestNewEntitlement(t *testing.T) {
	t.Run("creates free tier defaults", func(t *testing.T) {
		tenantID := uuid.New()

		ent, err := NewEntitlement(tenantID)

		require.NoError(t, err)
		assert.Equal(t, tenantID, ent.TenantID)
		assert.False(t, ent.Subscribed)
		assert.Empty(t, ent.StripeCustomerID)
		assert.Zero(t, ent.UsageCount)
		assert.False(t, ent.HasBillingCustomer())
	})

	t.Run("rejects nil tenant id", func(t *testing.T) {
		_, err := NewEntitlement(uuid.Nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestEntitlementActivate(t *testing.T) {
	t.Run("sets subscription and customer linkage", func(t *testing.T) {
		ent := newTestEntitlement(t)

		err := ent.Activate("cus_abc")

		require.NoError(t, err)
		assert.True(t, ent.Subscribed)
		assert.Equal(t, "cus_abc", ent.StripeCustomerID)
		assert.True(t, ent.HasBillingCustomer())

		events := ent.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeSubscriptionActivated, events[0].EventType())
	})

	t.Run("reactivation is idempotent", func(t *testing.T) {
		ent := newTestEntitlement(t)
		require.NoError(t, ent.Activate("cus_abc"))
		ent.ClearDomainEvents()

		err := ent.Activate("cus_abc")

		require.NoError(t, err)
		assert.True(t, ent.Subscribed)
		assert.Equal(t, "cus_abc", ent.StripeCustomerID)
	})

	t.Run("rejects empty customer id", func(t *testing.T) {
		ent := newTestEntitlement(t)
		assert.ErrorIs(t, ent.Activate(""), shared.ErrInvalidInput)
	})
}

func TestEntitlementDeactivate(t *testing.T) {
	t.Run("clears subscription but keeps customer linkage", func(t *testing.T) {
		ent := newTestEntitlement(t)
		require.NoError(t, ent.Activate("cus_abc"))
		ent.ClearDomainEvents()

		ent.Deactivate()

		assert.False(t, ent.Subscribed)
		assert.Equal(t, "cus_abc", ent.StripeCustomerID)

		events := ent.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeSubscriptionCancelled, events[0].EventType())
	})

	t.Run("deactivating a free tenant is a no-op state wise", func(t *testing.T) {
		ent := newTestEntitlement(t)

		ent.Deactivate()

		assert.False(t, ent.Subscribed)
		assert.Empty(t, ent.StripeCustomerID)
	})
}

func TestRemainingFreeAnalyses(t *testing.T) {
	ent := newTestEntitlement(t)

	ent.UsageCount = 3
	assert.Equal(t, int64(7), ent.RemainingFreeAnalyses(10))

	ent.UsageCount = 10
	assert.Equal(t, int64(0), ent.RemainingFreeAnalyses(10))

	ent.UsageCount = 15
	assert.Equal(t, int64(0), ent.RemainingFreeAnalyses(10))
}
