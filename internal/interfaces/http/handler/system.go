package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	db        *gorm.DB
	startedAt time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{
		db:        db,
		startedAt: time.Now(),
	}
}

// Health reports process liveness and database reachability
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
