package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v81"

	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/screening"
	"github.com/talentsift/backend/internal/domain/shared"
	infrabilling "github.com/talentsift/backend/internal/infrastructure/billing"
	"github.com/talentsift/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// authAs simulates JWT middleware having already validated a token
func authAs(userID uuid.UUID, role identity.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Set(middleware.JWTRoleKey, string(role))
		c.Next()
	}
}

// MockEntitlementRepository is a mock implementation of entitlement.EntitlementRepository
type MockEntitlementRepository struct {
	mock.Mock
}

func (m *MockEntitlementRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*entitlement.Entitlement, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Entitlement), args.Error(1)
}

func (m *MockEntitlementRepository) SetSubscription(ctx context.Context, tenantID uuid.UUID, subscribed bool, stripeCustomerID *string) error {
	args := m.Called(ctx, tenantID, subscribed, stripeCustomerID)
	return args.Error(0)
}

func (m *MockEntitlementRepository) IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntitlementRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]*entitlement.Entitlement, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entitlement.Entitlement), args.Error(1)
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context) ([]*identity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockReportRepository is a mock implementation of screening.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(ctx context.Context, report *screening.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*screening.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*screening.Report), args.Error(1)
}

func (m *MockReportRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (shared.Paginated[*screening.Report], error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Get(0).(shared.Paginated[*screening.Report]), args.Error(1)
}

func (m *MockReportRepository) FindAll(ctx context.Context) ([]*screening.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*screening.Report), args.Error(1)
}

// MockAnalyzer is a mock implementation of screening.Analyzer
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req screening.AnalysisRequest) (*screening.AnalysisResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*screening.AnalysisResult), args.Error(1)
}

// MockWebhookVerifier is a mock webhook signature verifier
type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) VerifySignature(payload []byte, sigHeader string) (stripe.Event, error) {
	args := m.Called(payload, sigHeader)
	return args.Get(0).(stripe.Event), args.Error(1)
}

// MockDedupStore is a mock implementation of shared.IdempotencyStore
type MockDedupStore struct {
	mock.Mock
}

func (m *MockDedupStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupStore) Release(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockDedupStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSessionGateway is a mock Stripe session gateway
type MockSessionGateway struct {
	mock.Mock
}

func (m *MockSessionGateway) CreateCheckoutSession(ctx context.Context, input infrabilling.CheckoutSessionInput) (*infrabilling.SessionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infrabilling.SessionOutput), args.Error(1)
}

func (m *MockSessionGateway) CreateBillingPortalSession(ctx context.Context, stripeCustomerID string) (*infrabilling.SessionOutput, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infrabilling.SessionOutput), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
