package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talentsift/backend/internal/domain/entitlement"
	"github.com/talentsift/backend/internal/domain/shared"
)

// EntitlementModel is the GORM model for entitlement records
type EntitlementModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Subscribed       bool      `gorm:"not null;default:false"`
	StripeCustomerID string    `gorm:"type:varchar(255);index"`
	UsageCount       int64     `gorm:"not null;default:0"`
	Version          int       `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (EntitlementModel) TableName() string {
	return "entitlements"
}

// ToEntity converts the model to a domain entity
func (m *EntitlementModel) ToEntity() *entitlement.Entitlement {
	return &entitlement.Entitlement{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:         m.TenantID,
		Subscribed:       m.Subscribed,
		StripeCustomerID: m.StripeCustomerID,
		UsageCount:       m.UsageCount,
	}
}

// EntitlementModelFromEntity creates a model from a domain entity
func EntitlementModelFromEntity(e *entitlement.Entitlement) *EntitlementModel {
	return &EntitlementModel{
		ID:               e.ID,
		TenantID:         e.TenantID,
		Subscribed:       e.Subscribed,
		StripeCustomerID: e.StripeCustomerID,
		UsageCount:       e.UsageCount,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// GormEntitlementRepository implements entitlement.EntitlementRepository.
// All mutations use single-statement atomic updates; the webhook path and
// the request path may hit the same row concurrently.
type GormEntitlementRepository struct {
	db *gorm.DB
}

// NewGormEntitlementRepository creates a new entitlement repository
func NewGormEntitlementRepository(db *gorm.DB) *GormEntitlementRepository {
	return &GormEntitlementRepository{db: db}
}

// GetOrCreate returns the tenant's entitlement record, lazily creating the
// free-tier default on first access. Creation races are resolved by the
// unique index on tenant_id.
func (r *GormEntitlementRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID) (*entitlement.Entitlement, error) {
	var model EntitlementModel
	err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error
	if err == nil {
		return model.ToEntity(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ent, err := entitlement.NewEntitlement(tenantID)
	if err != nil {
		return nil, err
	}
	create := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}).
		Create(EntitlementModelFromEntity(ent))
	if create.Error != nil {
		return nil, create.Error
	}

	// Re-read so a concurrent creator's row wins consistently
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// SetSubscription upserts the subscription state with merge semantics: a nil
// stripeCustomerID leaves the stored linkage untouched, so cancellations
// never erase the historical billing customer.
func (r *GormEntitlementRepository) SetSubscription(ctx context.Context, tenantID uuid.UUID, subscribed bool, stripeCustomerID *string) error {
	if _, err := r.GetOrCreate(ctx, tenantID); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"subscribed": subscribed,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if stripeCustomerID != nil {
		updates["stripe_customer_id"] = *stripeCustomerID
	}

	return r.db.WithContext(ctx).
		Model(&EntitlementModel{}).
		Where("tenant_id = ?", tenantID).
		UpdateColumns(updates).Error
}

// IncrementUsage atomically advances the usage counter by one and returns
// the new count. The increment is a single UPDATE expression so concurrent
// callers never lose updates.
func (r *GormEntitlementRepository) IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var newCount int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&EntitlementModel{}).
			Where("tenant_id = ?", tenantID).
			UpdateColumns(map[string]interface{}{
				"usage_count": gorm.Expr("usage_count + ?", 1),
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// Lazy creation for a tenant incremented before first read
			ent, err := entitlement.NewEntitlement(tenantID)
			if err != nil {
				return err
			}
			model := EntitlementModelFromEntity(ent)
			model.UsageCount = 1
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}).
				Create(model).Error; err != nil {
				return err
			}
			// A concurrent creator may have won; apply the increment to
			// whichever row exists now
			res = tx.Model(&EntitlementModel{}).
				Where("tenant_id = ? AND id <> ?", tenantID, model.ID).
				UpdateColumns(map[string]interface{}{
					"usage_count": gorm.Expr("usage_count + ?", 1),
					"updated_at":  time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
		}

		return tx.Model(&EntitlementModel{}).
			Where("tenant_id = ?", tenantID).
			Pluck("usage_count", &newCount).Error
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

// FindByStripeCustomerID returns every entitlement record linked to a
// billing customer. Backed by the index on stripe_customer_id; this is the
// reverse lookup for the cancellation fan-out.
func (r *GormEntitlementRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) ([]*entitlement.Entitlement, error) {
	if stripeCustomerID == "" {
		return nil, nil
	}

	var models []EntitlementModel
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", stripeCustomerID).
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*entitlement.Entitlement, len(models))
	for i := range models {
		records[i] = models[i].ToEntity()
	}
	return records, nil
}

// Ensure GormEntitlementRepository implements the interface
var _ entitlement.EntitlementRepository = (*GormEntitlementRepository)(nil)
