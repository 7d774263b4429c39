package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/shared"
)

// MockEntitlementRepository is a mock implementation of domain.EntitlementRepository
type MockEntitlementRepository struct {
	mock.Mock
}

func (m *MockEntitlementRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*domain.Entitlement, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entitlement), args.Error(1)
}

func (m *MockEntitlementRepository) SetSubscription(ctx context.Context, tenantID uuid.UUID, subscribed bool, stripeCustomerID *string) error {
	args := m.Called(ctx, tenantID, subscribed, stripeCustomerID)
	return args.Error(0)
}

func (m *MockEntitlementRepository) IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntitlementRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]*domain.Entitlement, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entitlement), args.Error(1)
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

const testFreeLimit = int64(10)

func newService(t *testing.T) (*Service, *MockEntitlementRepository, *MockUserRepository) {
	t.Helper()

	entitlements := new(MockEntitlementRepository)
	users := new(MockUserRepository)
	svc := NewService(ServiceConfig{
		Entitlements: entitlements,
		Users:        users,
		FreeLimit:    testFreeLimit,
		Logger:       zap.NewNop(),
	})
	return svc, entitlements, users
}

func recruiter(t *testing.T) *identity.User {
	t.Helper()
	user, err := identity.NewUser("recruiter@example.com", "Recruiter", "landing_page")
	require.NoError(t, err)
	return user
}

func entitlementWithUsage(t *testing.T, tenantID uuid.UUID, usage int64, subscribed bool) *domain.Entitlement {
	t.Helper()
	ent, err := domain.NewEntitlement(tenantID)
	require.NoError(t, err)
	ent.UsageCount = usage
	ent.Subscribed = subscribed
	return ent
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier snapshot reports remaining quota", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		user := recruiter(t)
		tenantID := user.TenantID()

		users.On("FindByID", mock.Anything, tenantID).Return(user, nil)
		entitlements.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementWithUsage(t, tenantID, 3, false), nil)

		snapshot, err := svc.Get(ctx, tenantID)

		require.NoError(t, err)
		assert.Equal(t, tenantID, snapshot.TenantID)
		assert.False(t, snapshot.Subscribed)
		assert.Equal(t, int64(3), snapshot.UsageCount)
		assert.Equal(t, testFreeLimit, snapshot.FreeLimit)
		assert.Equal(t, int64(7), snapshot.Remaining)
		assert.False(t, snapshot.Unmetered)
	})

	t.Run("remaining clamps to zero past the limit", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		user := recruiter(t)
		tenantID := user.TenantID()

		users.On("FindByID", mock.Anything, tenantID).Return(user, nil)
		entitlements.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementWithUsage(t, tenantID, testFreeLimit+5, false), nil)

		snapshot, err := svc.Get(ctx, tenantID)

		require.NoError(t, err)
		assert.Zero(t, snapshot.Remaining)
		assert.False(t, snapshot.Unmetered)
	})

	t.Run("subscriber is unmetered regardless of usage", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		user := recruiter(t)
		tenantID := user.TenantID()

		users.On("FindByID", mock.Anything, tenantID).Return(user, nil)
		entitlements.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementWithUsage(t, tenantID, testFreeLimit+50, true), nil)

		snapshot, err := svc.Get(ctx, tenantID)

		require.NoError(t, err)
		assert.True(t, snapshot.Subscribed)
		assert.True(t, snapshot.Unmetered)
	})

	t.Run("operator is unmetered without a subscription", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		user := recruiter(t)
		user.Promote()
		tenantID := user.TenantID()

		users.On("FindByID", mock.Anything, tenantID).Return(user, nil)
		entitlements.On("GetOrCreate", mock.Anything, tenantID).
			Return(entitlementWithUsage(t, tenantID, 0, false), nil)

		snapshot, err := svc.Get(ctx, tenantID)

		require.NoError(t, err)
		assert.True(t, snapshot.Unmetered)
	})

	t.Run("unknown account fails the lookup", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		tenantID := uuid.New()

		users.On("FindByID", mock.Anything, tenantID).Return(nil, shared.ErrNotFound)

		snapshot, err := svc.Get(ctx, tenantID)

		require.Error(t, err)
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		entitlements.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		svc, entitlements, users := newService(t)
		user := recruiter(t)
		tenantID := user.TenantID()

		users.On("FindByID", mock.Anything, tenantID).Return(user, nil)
		entitlements.On("GetOrCreate", mock.Anything, tenantID).
			Return(nil, errors.New("connection refused"))

		snapshot, err := svc.Get(ctx, tenantID)

		require.Error(t, err)
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	})
}
