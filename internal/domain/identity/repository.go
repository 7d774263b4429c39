package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines persistence operations for registered accounts
type UserRepository interface {
	// FindByID returns a user by id, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// FindByEmail returns a user by normalized email, shared.ErrNotFound if absent
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindAll returns the full registry ordered by registration time descending
	FindAll(ctx context.Context) ([]*User, error)

	// Save persists a new or updated user
	Save(ctx context.Context, user *User) error
}
