package identity

import (
	"strings"

	"github.com/google/uuid"

	"github.com/talentsift/backend/internal/domain/shared"
)

// UserRole represents the role of a registered account
type UserRole string

// User roles
const (
	RoleRecruiter UserRole = "recruiter"
	RoleAdmin     UserRole = "admin"
)

// User is a registered tenant account. Usage and entitlement are tracked per
// user, so the user id doubles as the tenant id throughout the system.
type User struct {
	shared.BaseAggregateRoot
	Email       string   `gorm:"size:255;not null;uniqueIndex"`
	DisplayName string   `gorm:"size:255"`
	Company     string   `gorm:"size:255"`
	Role        UserRole `gorm:"size:32;not null;default:'recruiter'"`
	// SignupSource records which front-end produced the registration
	SignupSource string `gorm:"size:64"`
}

// NewUser creates a recruiter account
func NewUser(email, displayName, signupSource string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.ErrInvalidInput
	}
	return &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		DisplayName:       strings.TrimSpace(displayName),
		Role:              RoleRecruiter,
		SignupSource:      signupSource,
	}, nil
}

// IsOperator reports whether the account has administrative privileges.
// Operators bypass quota metering and can access cross-tenant analytics.
func (u *User) IsOperator() bool {
	return u.Role == RoleAdmin
}

// Promote grants administrative privileges
func (u *User) Promote() {
	u.Role = RoleAdmin
}

// TenantID returns the tenant identifier for this account
func (u *User) TenantID() uuid.UUID {
	return u.GetID()
}
