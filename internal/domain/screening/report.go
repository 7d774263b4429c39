package screening

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talentsift/backend/internal/domain/shared"
)

// FitLevel is the categorical verdict the analysis service assigns to a
// candidate. The enum is fixed; anything else is treated as unknown.
type FitLevel string

// Fit levels
const (
	FitLevelStrong   FitLevel = "strong_fit"
	FitLevelGood     FitLevel = "good_fit"
	FitLevelModerate FitLevel = "moderate_fit"
	FitLevelWeak     FitLevel = "weak_fit"
	FitLevelUnknown  FitLevel = "unknown"
)

// KnownFitLevels lists the fixed enum in display order
var KnownFitLevels = []FitLevel{FitLevelStrong, FitLevelGood, FitLevelModerate, FitLevelWeak}

// ParseFitLevel maps a raw string onto the fixed enum. The second return
// value is false for anything outside the enum, which the aggregator treats
// as an absent field rather than an error.
func ParseFitLevel(raw string) (FitLevel, bool) {
	switch FitLevel(raw) {
	case FitLevelStrong, FitLevelGood, FitLevelModerate, FitLevelWeak:
		return FitLevel(raw), true
	default:
		return FitLevelUnknown, false
	}
}

// Report is one completed candidate analysis, scoped to the tenant that
// requested it. Read-only input to the cross-tenant analytics aggregation.
type Report struct {
	shared.BaseAggregateRoot
	OwnerID          uuid.UUID `gorm:"type:uuid;not null;index"`
	CandidateName    string    `gorm:"size:255"`
	RoleTitle        string    `gorm:"size:255"`
	SuitabilityScore float64   `gorm:"not null"`
	// ExperienceYears is nil when the analysis could not extract a numeric
	// experience figure from the resume
	ExperienceYears *float64
	FitLevel        FitLevel `gorm:"size:32"`
	Gaps            []string `gorm:"serializer:json"`
	Location        string   `gorm:"size:255"`
	// ExpectedSalary is zero when the candidate gave no salary indication
	ExpectedSalary decimal.Decimal `gorm:"type:decimal(12,2)"`
	Summary        string          `gorm:"type:text"`
}

// NewReport creates a report owned by the requesting tenant from a completed
// analysis result
func NewReport(ownerID uuid.UUID, candidateName, roleTitle string, result *AnalysisResult) (*Report, error) {
	if ownerID == uuid.Nil || result == nil {
		return nil, shared.ErrInvalidInput
	}
	fitLevel, ok := ParseFitLevel(string(result.FitLevel))
	if !ok {
		fitLevel = FitLevelUnknown
	}
	return &Report{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		CandidateName:     candidateName,
		RoleTitle:         roleTitle,
		SuitabilityScore:  result.SuitabilityScore,
		ExperienceYears:   result.ExperienceYears,
		FitLevel:          fitLevel,
		Gaps:              result.Gaps,
		Location:          result.Location,
		ExpectedSalary:    result.ExpectedSalary,
		Summary:           result.Summary,
	}, nil
}

// SalaryIndicated reports whether the candidate gave any salary expectation
func (r *Report) SalaryIndicated() bool {
	return !r.ExpectedSalary.IsZero()
}
