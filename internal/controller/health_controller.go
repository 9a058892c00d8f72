package controller

import (
	"net/http"

	"fcr_assist_backend/internal/service"
	"fcr_assist_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB          *gorm.DB
	Submissions *service.SubmissionService
}

func NewHealthController(db *gorm.DB, submissions *service.SubmissionService) *HealthController {
	return &HealthController{DB: db, Submissions: submissions}
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
		},
		"activeSessions": c.Submissions.ActiveSessions(),
	})
}
