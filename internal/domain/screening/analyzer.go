package screening

import (
	"context"

	"github.com/shopspring/decimal"
)

// AnalysisRequest carries the opaque inputs forwarded to the external
// analysis service. Document text extraction and prompt construction happen
// on the other side of this seam.
type AnalysisRequest struct {
	CandidateName  string `json:"candidate_name"`
	RoleTitle      string `json:"role_title"`
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// AnalysisResult is the structured outcome returned by the analysis service
type AnalysisResult struct {
	SuitabilityScore float64         `json:"suitability_score"`
	ExperienceYears  *float64        `json:"experience_years"`
	FitLevel         FitLevel        `json:"fit_level"`
	Gaps             []string        `json:"gaps"`
	Location         string          `json:"location"`
	ExpectedSalary   decimal.Decimal `json:"expected_salary"`
	Summary          string          `json:"summary"`
}

// Analyzer is the port to the external AI analysis service. Calls may take
// up to tens of seconds; the application layer owns retry policy.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}
