package controller

import (
	"fcr_assist_backend/internal/service"
	"fcr_assist_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	Service *service.DashboardService
}

func NewDashboardController(svc *service.DashboardService) *DashboardController {
	return &DashboardController{Service: svc}
}

// @Summary Dashboard statistics for the current user
// @Tags dashboard
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/dashboard/stats [get]
func (c *DashboardController) GetStats(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.Service.StatsForUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
