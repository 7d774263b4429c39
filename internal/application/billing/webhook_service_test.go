package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/application/retry"
	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/shared"
)

type webhookTestDeps struct {
	verifier *MockWebhookVerifier
	entRepo  *MockEntitlementRepository
	dedup    *MockDedupStore
	bus      *MockEventPublisher
}

func newWebhookService(t *testing.T) (*WebhookService, *webhookTestDeps) {
	t.Helper()

	deps := &webhookTestDeps{
		verifier: new(MockWebhookVerifier),
		entRepo:  new(MockEntitlementRepository),
		dedup:    new(MockDedupStore),
		bus:      new(MockEventPublisher),
	}
	svc := NewWebhookService(WebhookServiceConfig{
		Verifier:     deps.verifier,
		Entitlements: deps.entRepo,
		Dedup:        deps.dedup,
		EventBus:     deps.bus,
		RetryPolicy:  retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Logger:       zap.NewNop(),
	})
	return svc, deps
}

func checkoutCompletedEvent(t *testing.T, clientRef, customerID string) stripe.Event {
	t.Helper()

	payload := map[string]interface{}{
		"id":                  "cs_test_123",
		"client_reference_id": clientRef,
	}
	if customerID != "" {
		payload["customer"] = customerID
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return stripe.Event{
		ID:   "evt_checkout_" + uuid.NewString(),
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func subscriptionDeletedEvent(t *testing.T, customerID string) stripe.Event {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"id":       "sub_test_123",
		"customer": customerID,
	})
	require.NoError(t, err)

	return stripe.Event{
		ID:   "evt_cancel_" + uuid.NewString(),
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: raw},
	}
}

func entitlementFor(t *testing.T, tenantID uuid.UUID, customerID string) *entitlement.Entitlement {
	t.Helper()

	ent, err := entitlement.NewEntitlement(tenantID)
	require.NoError(t, err)
	if customerID != "" {
		require.NoError(t, ent.Activate(customerID))
	}
	return ent
}

func TestWebhookService_SignatureVerification(t *testing.T) {
	svc, deps := newWebhookService(t)
	payload := []byte(`{"id": "evt_1"}`)

	deps.verifier.On("VerifySignature", payload, "bad-sig").
		Return(stripe.Event{}, fmt.Errorf("%w: header mismatch", shared.ErrInvalidSignature))

	_, err := svc.ProcessWebhook(context.Background(), payload, "bad-sig")

	assert.ErrorIs(t, err, shared.ErrInvalidSignature)
	// A forged delivery must be rejected before any store is touched
	deps.dedup.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	deps.entRepo.AssertExpectations(t)
}

func TestWebhookService_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the referenced tenant", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		tenantID := uuid.New()
		event := checkoutCompletedEvent(t, tenantID.String(), "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true,
			mock.MatchedBy(func(ref *string) bool { return ref != nil && *ref == "cus_123" })).
			Return(nil)
		deps.entRepo.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementFor(t, tenantID, "cus_123"), nil)
		deps.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertExpectations(t)
		deps.bus.AssertExpectations(t)
	})

	t.Run("redelivery is acknowledged without reapplying", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		event := checkoutCompletedEvent(t, uuid.NewString(), "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(false, nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.False(t, result.Processed)
		assert.Equal(t, "duplicate delivery", result.Message)
		deps.entRepo.AssertNotCalled(t, "SetSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid client reference is acknowledged without writes", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		event := checkoutCompletedEvent(t, "not-a-tenant-id", "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertNotCalled(t, "SetSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transient store failure is retried to success", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		tenantID := uuid.New()
		event := checkoutCompletedEvent(t, tenantID.String(), "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true, mock.Anything).
			Return(errors.New("connection reset")).Twice()
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true, mock.Anything).
			Return(nil).Once()
		deps.entRepo.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementFor(t, tenantID, "cus_123"), nil)
		deps.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertExpectations(t)
	})

	t.Run("store failure after all retries surfaces as store unavailable", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		tenantID := uuid.New()
		event := checkoutCompletedEvent(t, tenantID.String(), "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.dedup.On("Release", mock.Anything, event.ID).Return(nil)
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true, mock.Anything).
			Return(errors.New("connection reset"))

		_, err := svc.ProcessWebhook(ctx, payload, "sig")

		assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
		deps.entRepo.AssertNumberOfCalls(t, "SetSubscription", 3)
		// A failed delivery must not keep its claim, or the redelivery is
		// dropped as a duplicate
		deps.dedup.AssertCalled(t, "Release", mock.Anything, event.ID)
	})

	t.Run("missing customer is acknowledged without activating", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		tenantID := uuid.New()
		event := checkoutCompletedEvent(t, tenantID.String(), "")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		// Subscribed without a customer linkage would be unreachable from
		// the portal and from cancellation fan-out
		deps.entRepo.AssertNotCalled(t, "SetSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("redelivery after a failed delivery activates the tenant", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		tenantID := uuid.New()
		event := checkoutCompletedEvent(t, tenantID.String(), "cus_123")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.dedup.On("Release", mock.Anything, event.ID).Return(nil)
		// The store is down for the whole first delivery, then recovers
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true, mock.Anything).
			Return(errors.New("connection reset")).Times(3)
		deps.entRepo.On("SetSubscription", mock.Anything, tenantID, true, mock.Anything).
			Return(nil).Once()
		deps.entRepo.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementFor(t, tenantID, "cus_123"), nil)
		deps.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.ProcessWebhook(ctx, payload, "sig")
		require.ErrorIs(t, err, shared.ErrStoreUnavailable)
		deps.dedup.AssertCalled(t, "Release", mock.Anything, event.ID)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertNumberOfCalls(t, "SetSubscription", 4)
	})
}

func TestWebhookService_SubscriptionDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("downgrades every record linked to the customer", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		event := subscriptionDeletedEvent(t, "cus_shared")
		payload := []byte("payload")

		records := []*entitlement.Entitlement{
			entitlementFor(t, uuid.New(), "cus_shared"),
			entitlementFor(t, uuid.New(), "cus_shared"),
			entitlementFor(t, uuid.New(), "cus_shared"),
		}

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.entRepo.On("FindByStripeCustomerID", mock.Anything, "cus_shared").Return(records, nil)
		for _, record := range records {
			deps.entRepo.On("SetSubscription", mock.Anything, record.TenantID, false, (*string)(nil)).
				Return(nil).Once()
		}
		deps.bus.On("Publish", mock.Anything, mock.Anything).Return(nil).Times(3)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertExpectations(t)
		deps.bus.AssertExpectations(t)
	})

	t.Run("unknown customer is a no-op acknowledged with success", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		event := subscriptionDeletedEvent(t, "cus_unknown")
		payload := []byte("payload")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.entRepo.On("FindByStripeCustomerID", mock.Anything, "cus_unknown").
			Return([]*entitlement.Entitlement{}, nil)

		result, err := svc.ProcessWebhook(ctx, payload, "sig")

		require.NoError(t, err)
		assert.True(t, result.Processed)
		deps.entRepo.AssertNotCalled(t, "SetSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("partial downgrade failures do not block remaining records", func(t *testing.T) {
		svc, deps := newWebhookService(t)
		event := subscriptionDeletedEvent(t, "cus_shared")
		payload := []byte("payload")

		failing := entitlementFor(t, uuid.New(), "cus_shared")
		healthy := entitlementFor(t, uuid.New(), "cus_shared")

		deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
		deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)
		deps.dedup.On("Release", mock.Anything, event.ID).Return(nil)
		deps.entRepo.On("FindByStripeCustomerID", mock.Anything, "cus_shared").
			Return([]*entitlement.Entitlement{failing, healthy}, nil)
		deps.entRepo.On("SetSubscription", mock.Anything, failing.TenantID, false, (*string)(nil)).
			Return(errors.New("connection reset"))
		deps.entRepo.On("SetSubscription", mock.Anything, healthy.TenantID, false, (*string)(nil)).
			Return(nil).Once()
		deps.bus.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := svc.ProcessWebhook(ctx, payload, "sig")

		// The healthy record downgrades on this delivery, and the failure
		// releases the claim so a redelivery can finish the rest
		require.ErrorIs(t, err, shared.ErrStoreUnavailable)
		deps.dedup.AssertCalled(t, "Release", mock.Anything, event.ID)
		deps.entRepo.AssertExpectations(t)
	})
}

func TestWebhookService_UnhandledEventType(t *testing.T) {
	svc, deps := newWebhookService(t)
	event := stripe.Event{
		ID:   "evt_other",
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: []byte("{}")},
	}
	payload := []byte("payload")

	deps.verifier.On("VerifySignature", payload, "sig").Return(event, nil)
	deps.dedup.On("MarkProcessed", mock.Anything, event.ID, mock.Anything).Return(true, nil)

	result, err := svc.ProcessWebhook(context.Background(), payload, "sig")

	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, "event type not handled", result.Message)
	deps.entRepo.AssertNotCalled(t, "SetSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
