package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/shared"
)

// Service reads entitlement state for the client-facing snapshot endpoint.
// The snapshot drives the upgrade prompt in the frontend; enforcement happens
// in the screening service, never here.
type Service struct {
	entitlements domain.EntitlementRepository
	users        identity.UserRepository
	freeLimit    int64
	logger       *zap.Logger
}

// ServiceConfig contains configuration for Service
type ServiceConfig struct {
	Entitlements domain.EntitlementRepository
	Users        identity.UserRepository
	FreeLimit    int64
	Logger       *zap.Logger
}

// NewService creates a new entitlement query service
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		entitlements: cfg.Entitlements,
		users:        cfg.Users,
		freeLimit:    cfg.FreeLimit,
		logger:       cfg.Logger,
	}
}

// Snapshot is the tenant's current entitlement state
type Snapshot struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	Subscribed bool      `json:"subscribed"`
	UsageCount int64     `json:"usage_count"`
	FreeLimit  int64     `json:"free_limit"`
	// Remaining is the free analyses left; zero for exhausted free tiers and
	// irrelevant for unmetered accounts
	Remaining int64 `json:"remaining"`
	Unmetered bool  `json:"unmetered"`
}

// Get returns the current entitlement snapshot for a tenant
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error) {
	user, err := s.users.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	ent, err := s.entitlements.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading entitlement: %v", shared.ErrStoreUnavailable, err)
	}

	decision := domain.Decide(ent, user.IsOperator(), s.freeLimit)

	return &Snapshot{
		TenantID:   tenantID,
		Subscribed: ent.Subscribed,
		UsageCount: ent.UsageCount,
		FreeLimit:  s.freeLimit,
		Remaining:  ent.RemainingFreeAnalyses(s.freeLimit),
		Unmetered:  decision.Allowed && !decision.Metered,
	}, nil
}
