package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/shared"
	infrabilling "github.com/talentsift/backend/internal/infrastructure/billing"
)

// SessionGateway creates hosted Stripe sessions
type SessionGateway interface {
	CreateCheckoutSession(ctx context.Context, input infrabilling.CheckoutSessionInput) (*infrabilling.SessionOutput, error)
	CreateBillingPortalSession(ctx context.Context, stripeCustomerID string) (*infrabilling.SessionOutput, error)
}

// BillingService starts checkout and billing portal sessions for tenants
type BillingService struct {
	gateway      SessionGateway
	entitlements entitlement.EntitlementRepository
	users        identity.UserRepository
	logger       *zap.Logger
}

// BillingServiceConfig contains configuration for BillingService
type BillingServiceConfig struct {
	Gateway      SessionGateway
	Entitlements entitlement.EntitlementRepository
	Users        identity.UserRepository
	Logger       *zap.Logger
}

// NewBillingService creates a new BillingService
func NewBillingService(cfg BillingServiceConfig) *BillingService {
	return &BillingService{
		gateway:      cfg.Gateway,
		entitlements: cfg.Entitlements,
		users:        cfg.Users,
		logger:       cfg.Logger,
	}
}

// CreateCheckoutSession starts a subscription checkout for the tenant. The
// tenant id rides along as the client reference so the completion webhook
// can activate the right account.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, tenantID uuid.UUID) (*infrabilling.SessionOutput, error) {
	user, err := s.users.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	return s.gateway.CreateCheckoutSession(ctx, infrabilling.CheckoutSessionInput{
		TenantID:      tenantID,
		CustomerEmail: user.Email,
	})
}

// CreatePortalSession opens the billing portal for a tenant that has checked
// out at least once. Tenants with no billing customer linkage get ErrNotFound
// since there is no portal to open for them.
func (s *BillingService) CreatePortalSession(ctx context.Context, tenantID uuid.UUID) (*infrabilling.SessionOutput, error) {
	ent, err := s.entitlements.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("looking up entitlement: %w", err)
	}

	if !ent.HasBillingCustomer() {
		s.logger.Debug("portal requested without billing customer",
			zap.String("tenant_id", tenantID.String()))
		return nil, shared.ErrNotFound
	}

	return s.gateway.CreateBillingPortalSession(ctx, ent.StripeCustomerID)
}
