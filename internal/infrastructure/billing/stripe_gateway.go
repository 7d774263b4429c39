package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/infrastructure/config"
)

// StripeGateway creates Stripe checkout and billing portal sessions. The
// tenant id travels through checkout as the client reference, which is how
// the completion webhook finds its way back to the right account.
type StripeGateway struct {
	config config.StripeConfig
	logger *zap.Logger
}

// NewStripeGateway validates the configuration and initializes the global
// Stripe client key
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required")
	}
	if cfg.SubscriptionPriceID == "" {
		return nil, fmt.Errorf("stripe: subscription price id is required")
	}

	stripe.Key = cfg.SecretKey

	return &StripeGateway{
		config: cfg,
		logger: logger,
	}, nil
}

// CheckoutSessionInput carries the inputs for starting a subscription checkout
type CheckoutSessionInput struct {
	TenantID      uuid.UUID
	CustomerEmail string
}

// SessionOutput is the hosted session the frontend redirects to
type SessionOutput struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession starts a hosted subscription checkout for the tenant
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*SessionOutput, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.config.SubscriptionPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		// The completion webhook reads this back to identify the tenant
		ClientReferenceID: stripe.String(input.TenantID.String()),
		SuccessURL:        stripe.String(g.config.CheckoutSuccessURL),
		CancelURL:         stripe.String(g.config.CheckoutCancelURL),
	}
	if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		g.logger.Error("failed to create checkout session",
			zap.String("tenant_id", input.TenantID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	g.logger.Info("created checkout session",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("session_id", sess.ID))

	return &SessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// CreateBillingPortalSession opens the Stripe-hosted billing portal for an
// existing billing customer
func (g *StripeGateway) CreateBillingPortalSession(ctx context.Context, stripeCustomerID string) (*SessionOutput, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(stripeCustomerID),
		ReturnURL: stripe.String(g.config.BillingPortalReturnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		g.logger.Error("failed to create billing portal session",
			zap.String("customer_id", stripeCustomerID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create billing portal session: %w", err)
	}

	g.logger.Info("created billing portal session",
		zap.String("customer_id", stripeCustomerID),
		zap.String("session_id", sess.ID))

	return &SessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}
