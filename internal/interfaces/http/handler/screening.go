package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appscreening "github.com/talentsift/backend/internal/application/screening"
	"github.com/talentsift/backend/internal/domain/screening"
	"github.com/talentsift/backend/internal/domain/shared"
	"github.com/talentsift/backend/internal/interfaces/http/dto"
)

// ScreeningHandler handles resume screening HTTP requests
type ScreeningHandler struct {
	BaseHandler
	analysis  *appscreening.AnalysisService
	rateLimit gin.HandlerFunc
}

// NewScreeningHandler creates a new screening handler. rateLimit guards the
// analyze route only; pass nil to disable (tests).
func NewScreeningHandler(analysis *appscreening.AnalysisService, rateLimit gin.HandlerFunc) *ScreeningHandler {
	if rateLimit == nil {
		rateLimit = func(c *gin.Context) { c.Next() }
	}
	return &ScreeningHandler{analysis: analysis, rateLimit: rateLimit}
}

// AnalyzeRequest is the screening request payload
type AnalyzeRequest struct {
	CandidateName  string `json:"candidateName" binding:"required"`
	RoleTitle      string `json:"roleTitle"`
	ResumeText     string `json:"resumeText" binding:"required"`
	JobDescription string `json:"jobDescription"`
}

// ReportResponse is one screening report
type ReportResponse struct {
	ID               uuid.UUID       `json:"id"`
	CandidateName    string          `json:"candidate_name"`
	RoleTitle        string          `json:"role_title"`
	SuitabilityScore float64         `json:"suitability_score"`
	ExperienceYears  *float64        `json:"experience_years,omitempty"`
	FitLevel         string          `json:"fit_level"`
	Gaps             []string        `json:"gaps"`
	Location         string          `json:"location,omitempty"`
	ExpectedSalary   decimal.Decimal `json:"expected_salary"`
	Summary          string          `json:"summary,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AnalyzeResponse is the screening result plus the tenant's metering state
type AnalyzeResponse struct {
	Report     ReportResponse `json:"report"`
	UsageCount int64          `json:"usage_count"`
	Metered    bool           `json:"metered"`
}

func toReportResponse(r *screening.Report) ReportResponse {
	return ReportResponse{
		ID:               r.GetID(),
		CandidateName:    r.CandidateName,
		RoleTitle:        r.RoleTitle,
		SuitabilityScore: r.SuitabilityScore,
		ExperienceYears:  r.ExperienceYears,
		FitLevel:         string(r.FitLevel),
		Gaps:             r.Gaps,
		Location:         r.Location,
		ExpectedSalary:   r.ExpectedSalary,
		Summary:          r.Summary,
		CreatedAt:        r.CreatedAt,
	}
}

// Analyze runs one candidate screening for the authenticated tenant
func (h *ScreeningHandler) Analyze(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
		return
	}

	output, err := h.analysis.Analyze(c.Request.Context(), appscreening.AnalyzeInput{
		TenantID:       tenant,
		CandidateName:  req.CandidateName,
		RoleTitle:      req.RoleTitle,
		ResumeText:     req.ResumeText,
		JobDescription: req.JobDescription,
	})
	if err != nil {
		if errors.Is(err, shared.ErrQuotaExceeded) {
			// The frontend renders this as the upgrade call-to-action
			c.JSON(http.StatusPaymentRequired, dto.Response{
				Success: false,
				Data:    gin.H{"upgrade_required": true},
				Error: &dto.ErrorInfo{
					Code:    dto.ErrCodeQuotaExceeded,
					Message: "Free analysis quota exhausted. Subscribe to continue screening candidates.",
				},
			})
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, AnalyzeResponse{
		Report:     toReportResponse(output.Report),
		UsageCount: output.UsageCount,
		Metered:    output.Metered,
	})
}

// ReportPageResponse is one page of the tenant's screening reports
type ReportPageResponse struct {
	Items      []ReportResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// ListReports returns one page of the tenant's own screening reports,
// newest first
func (h *ScreeningHandler) ListReports(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	filter := parseFilter(c)
	page, err := h.analysis.ListReports(c.Request.Context(), tenant, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]ReportResponse, 0, len(page.Items))
	for _, r := range page.Items {
		out = append(out, toReportResponse(r))
	}
	h.Success(c, ReportPageResponse{
		Items:      out,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

const maxPageSize = 100

// parseFilter reads pagination from the query string, clamping to sane bounds
func parseFilter(c *gin.Context) shared.Filter {
	filter := shared.DefaultFilter()
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		if v > maxPageSize {
			v = maxPageSize
		}
		filter.PageSize = v
	}
	return filter
}

// RegisterRoutes registers screening routes
func (h *ScreeningHandler) RegisterRoutes(rg *gin.RouterGroup) {
	screenings := rg.Group("/screenings")
	{
		screenings.POST("/analyze", h.rateLimit, h.Analyze)
		screenings.GET("", h.ListReports)
	}
}
