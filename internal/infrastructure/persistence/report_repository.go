package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/talentsift/backend/internal/domain/screening"
	"github.com/talentsift/backend/internal/domain/shared"
)

// ReportModel is the GORM model for screening reports
type ReportModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID          uuid.UUID `gorm:"type:uuid;index;not null"`
	CandidateName    string    `gorm:"type:varchar(255)"`
	RoleTitle        string    `gorm:"type:varchar(255)"`
	SuitabilityScore float64   `gorm:"not null"`
	ExperienceYears  *float64
	FitLevel         string          `gorm:"type:varchar(32)"`
	Gaps             []byte          `gorm:"type:jsonb"`
	Location         string          `gorm:"type:varchar(255)"`
	ExpectedSalary   decimal.Decimal `gorm:"type:decimal(12,2)"`
	Summary          string          `gorm:"type:text"`
	Version          int             `gorm:"not null;default:1"`
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ReportModel) TableName() string {
	return "screening_reports"
}

// ToEntity converts the model to a domain entity
func (m *ReportModel) ToEntity() *screening.Report {
	var gaps []string
	if len(m.Gaps) > 0 {
		_ = json.Unmarshal(m.Gaps, &gaps)
	}

	fitLevel, ok := screening.ParseFitLevel(m.FitLevel)
	if !ok {
		fitLevel = screening.FitLevelUnknown
	}

	return &screening.Report{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		OwnerID:          m.OwnerID,
		CandidateName:    m.CandidateName,
		RoleTitle:        m.RoleTitle,
		SuitabilityScore: m.SuitabilityScore,
		ExperienceYears:  m.ExperienceYears,
		FitLevel:         fitLevel,
		Gaps:             gaps,
		Location:         m.Location,
		ExpectedSalary:   m.ExpectedSalary,
		Summary:          m.Summary,
	}
}

// ReportModelFromEntity creates a model from a domain entity
func ReportModelFromEntity(r *screening.Report) *ReportModel {
	var gapsBytes []byte
	if r.Gaps != nil {
		gapsBytes, _ = json.Marshal(r.Gaps)
	} else {
		gapsBytes = []byte("[]")
	}

	return &ReportModel{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		CandidateName:    r.CandidateName,
		RoleTitle:        r.RoleTitle,
		SuitabilityScore: r.SuitabilityScore,
		ExperienceYears:  r.ExperienceYears,
		FitLevel:         string(r.FitLevel),
		Gaps:             gapsBytes,
		Location:         r.Location,
		ExpectedSalary:   r.ExpectedSalary,
		Summary:          r.Summary,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// GormReportRepository implements screening.ReportRepository
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new report repository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// Save persists a completed report
func (r *GormReportRepository) Save(ctx context.Context, report *screening.Report) error {
	model := ReportModelFromEntity(report)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID retrieves a report by its ID
func (r *GormReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*screening.Report, error) {
	var model ReportModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByOwner retrieves one page of a tenant's reports, newest first
func (r *GormReportRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (shared.Paginated[*screening.Report], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&ReportModel{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error; err != nil {
		return shared.Paginated[*screening.Report]{}, err
	}

	var models []ReportModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&models).Error; err != nil {
		return shared.Paginated[*screening.Report]{}, err
	}

	return shared.NewPaginated(modelsToReports(models), total, filter.Page, filter.PageSize), nil
}

// FindAll returns every report across tenants, for the admin analytics view
func (r *GormReportRepository) FindAll(ctx context.Context) ([]*screening.Report, error) {
	var models []ReportModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return modelsToReports(models), nil
}

func modelsToReports(models []ReportModel) []*screening.Report {
	reports := make([]*screening.Report, len(models))
	for i := range models {
		reports[i] = models[i].ToEntity()
	}
	return reports
}

// Ensure GormReportRepository implements the interface
var _ screening.ReportRepository = (*GormReportRepository)(nil)
