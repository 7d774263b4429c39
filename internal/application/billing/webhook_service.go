package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/application/retry"
	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/shared"
)

// WebhookVerifier authenticates a raw webhook delivery and returns the
// parsed event
type WebhookVerifier interface {
	VerifySignature(payload []byte, sigHeader string) (stripe.Event, error)
}

// WebhookService drives the subscription state machine from Stripe webhook
// deliveries. Signature verification runs before any store access, and every
// event ID is claimed in the dedup store so redeliveries are acknowledged
// without being applied twice. A claim is released when processing fails, so
// a redelivery of the failed event gets applied rather than deduplicated.
type WebhookService struct {
	verifier     WebhookVerifier
	entitlements entitlement.EntitlementRepository
	dedup        shared.IdempotencyStore
	eventBus     shared.EventPublisher
	retryPolicy  retry.Policy
	dedupTTL     time.Duration
	logger       *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Verifier     WebhookVerifier
	Entitlements entitlement.EntitlementRepository
	Dedup        shared.IdempotencyStore
	EventBus     shared.EventPublisher
	RetryPolicy  retry.Policy
	DedupTTL     time.Duration
	Logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	if cfg.RetryPolicy.Attempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookService{
		verifier:     cfg.Verifier,
		entitlements: cfg.Entitlements,
		dedup:        cfg.Dedup,
		eventBus:     cfg.EventBus,
		retryPolicy:  cfg.RetryPolicy,
		dedupTTL:     cfg.DedupTTL,
		logger:       cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies, deduplicates and applies one webhook delivery.
// Unknown event types and deliveries referencing unknown customers are
// acknowledged so Stripe stops redelivering them.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.verifier.VerifySignature(payload, signature)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("processing webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	claimed := false
	isNew, err := s.dedup.MarkProcessed(ctx, event.ID, s.dedupTTL)
	if err != nil {
		// Risking a duplicate application beats dropping the event; the
		// state machine transitions are idempotent anyway
		s.logger.Warn("failed to check event dedup, processing anyway",
			zap.String("event_id", event.ID),
			zap.Error(err))
	} else if !isNew {
		s.logger.Info("duplicate webhook delivery, skipping",
			zap.String("event_id", event.ID))
		return &WebhookResult{
			EventID:   event.ID,
			EventType: string(event.Type),
			Processed: false,
			Message:   "duplicate delivery",
		}, nil
	} else {
		claimed = true
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Debug("unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Processed = false
		result.Message = "event type not handled"
	}

	if err != nil {
		s.logger.Error("failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		// Give the claim back so a redelivery of this event is applied
		// instead of being short-circuited as a duplicate
		if claimed {
			if releaseErr := s.dedup.Release(ctx, event.ID); releaseErr != nil {
				s.logger.Error("failed to release event claim; redelivery will be dropped until the claim expires",
					zap.String("event_id", event.ID),
					zap.Error(releaseErr))
			}
		}
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	return result, nil
}

// handleCheckoutCompleted activates the subscription for the tenant carried
// in the checkout session's client reference
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	if session.ClientReferenceID == "" {
		s.logger.Warn("checkout session has no client reference, skipping",
			zap.String("session_id", session.ID))
		return nil
	}

	tenantID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		s.logger.Warn("checkout session client reference is not a tenant id, skipping",
			zap.String("session_id", session.ID),
			zap.String("client_reference_id", session.ClientReferenceID))
		return nil
	}

	if session.Customer == nil || session.Customer.ID == "" {
		// Activating without a customer linkage would strand the tenant:
		// no portal access and invisible to cancellation fan-out
		s.logger.Warn("checkout session has no customer, skipping",
			zap.String("session_id", session.ID),
			zap.String("tenant_id", tenantID.String()))
		return nil
	}
	customerRef := &session.Customer.ID

	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		return s.entitlements.SetSubscription(ctx, tenantID, true, customerRef)
	})
	if err != nil {
		return fmt.Errorf("%w: activating subscription: %v", shared.ErrStoreUnavailable, err)
	}

	ent, err := s.entitlements.GetOrCreate(ctx, tenantID)
	if err == nil {
		s.publish(ctx, entitlement.NewSubscriptionActivatedEvent(ent.GetID(), tenantID, ent.StripeCustomerID))
	}

	s.logger.Info("subscription activated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("session_id", session.ID))

	return nil
}

// handleSubscriptionDeleted downgrades every entitlement record linked to the
// cancelled customer. The billing customer linkage is kept so the tenant can
// reach the billing portal afterwards.
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	customerID := ""
	if subscription.Customer != nil {
		customerID = subscription.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("subscription has no customer id, skipping",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	var records []*entitlement.Entitlement
	err := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var lookupErr error
		records, lookupErr = s.entitlements.FindByStripeCustomerID(ctx, customerID)
		return lookupErr
	})
	if err != nil {
		return fmt.Errorf("%w: looking up customer entitlements: %v", shared.ErrStoreUnavailable, err)
	}

	if len(records) == 0 {
		// The customer never checked out through us, or the account is gone.
		// Acknowledge so Stripe stops redelivering.
		s.logger.Warn("no entitlements linked to cancelled customer",
			zap.String("customer_id", customerID),
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	failed := 0
	for _, record := range records {
		downgradeErr := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
			return s.entitlements.SetSubscription(ctx, record.TenantID, false, nil)
		})
		if downgradeErr != nil {
			failed++
			s.logger.Error("failed to downgrade entitlement",
				zap.String("tenant_id", record.TenantID.String()),
				zap.String("customer_id", customerID),
				zap.Error(downgradeErr))
			continue
		}
		s.publish(ctx, entitlement.NewSubscriptionCancelledEvent(record.GetID(), record.TenantID, customerID))
	}

	s.logger.Info("subscription cancellation applied",
		zap.String("customer_id", customerID),
		zap.Int("records", len(records)),
		zap.Int("failed", failed))

	if failed > 0 {
		// Failing releases the dedup claim, so a redelivery re-drives the
		// fan-out; downgrades already applied are idempotent re-applications
		return fmt.Errorf("%w: cancellation fan-out incomplete, %d of %d records failed",
			shared.ErrStoreUnavailable, failed, len(records))
	}

	return nil
}

func (s *WebhookService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish domain event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}
