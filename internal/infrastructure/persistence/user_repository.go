package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/domain/shared"
)

// UserModel is the GORM model for registered accounts
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName  string    `gorm:"type:varchar(255)"`
	Company      string    `gorm:"type:varchar(255)"`
	Role         string    `gorm:"type:varchar(32);not null;default:'recruiter'"`
	SignupSource string    `gorm:"type:varchar(64)"`
	Version      int       `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UserModel) TableName() string {
	return "users"
}

// ToEntity converts the model to a domain entity
func (m *UserModel) ToEntity() *identity.User {
	return &identity.User{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Email:        m.Email,
		DisplayName:  m.DisplayName,
		Company:      m.Company,
		Role:         identity.UserRole(m.Role),
		SignupSource: m.SignupSource,
	}
}

// UserModelFromEntity creates a model from a domain entity
func UserModelFromEntity(u *identity.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Company:      u.Company,
		Role:         string(u.Role),
		SignupSource: u.SignupSource,
		Version:      u.Version,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// GormUserRepository implements identity.UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user by id
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByEmail retrieves a user by normalized email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	var model UserModel
	normalized := strings.TrimSpace(strings.ToLower(email))
	if err := r.db.WithContext(ctx).First(&model, "email = ?", normalized).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAll returns the full registry ordered by registration time descending
func (r *GormUserRepository) FindAll(ctx context.Context) ([]*identity.User, error) {
	var models []UserModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]*identity.User, len(models))
	for i := range models {
		users[i] = models[i].ToEntity()
	}
	return users, nil
}

// Save persists a new or updated user
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	model := UserModelFromEntity(user)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Ensure GormUserRepository implements the interface
var _ identity.UserRepository = (*GormUserRepository)(nil)
