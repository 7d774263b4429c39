package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talentsift/backend/internal/application/analytics"
	"github.com/talentsift/backend/internal/domain/identity"
	"github.com/talentsift/backend/internal/interfaces/http/middleware"
)

// AdminHandler serves the operator-only analytics views
type AdminHandler struct {
	BaseHandler
	analytics *analytics.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(analytics *analytics.Service) *AdminHandler {
	return &AdminHandler{analytics: analytics}
}

// AnalyticsResponse bundles the aggregated statistics with the account registry
type AnalyticsResponse struct {
	Overview *analytics.Overview       `json:"overview"`
	Registry []analytics.RegistryEntry `json:"registry"`
}

func (h *AdminHandler) requireOperator(c *gin.Context) bool {
	if middleware.GetJWTRole(c) != string(identity.RoleAdmin) {
		h.Forbidden(c, "Operator role required")
		return false
	}
	return true
}

// Analytics returns cross-tenant aggregated statistics and the registry of
// recruiter accounts
func (h *AdminHandler) Analytics(c *gin.Context) {
	if !h.requireOperator(c) {
		return
	}

	overview, err := h.analytics.Aggregate(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	registry, err := h.analytics.Registry(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AnalyticsResponse{Overview: overview, Registry: registry})
}

// AnalyticsExport streams every screening report as CSV
func (h *AdminHandler) AnalyticsExport(c *gin.Context) {
	if !h.requireOperator(c) {
		return
	}

	filename := fmt.Sprintf("screening-reports-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.analytics.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		// Headers may already be out; nothing sensible left to send
		c.Abort()
	}
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	{
		admin.GET("/analytics", h.Analytics)
		admin.GET("/analytics/export", h.AnalyticsExport)
	}
}
