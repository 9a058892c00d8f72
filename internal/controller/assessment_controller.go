package controller

import (
	"errors"
	"strconv"

	"fcr_assist_backend/internal/service"
	"fcr_assist_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary List published assessments
// @Tags assessments
// @Produce json
// @Security ApiKeyAuth
// @Param category query string false "category filter"
// @Param search query string false "title/description search"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} util.Response
// @Router /api/assessments [get]
func (c *AssessmentController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	as, total, err := c.Service.List(ctx.Query("category"), ctx.Query("search"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  as,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary Assessment detail
// @Tags assessments
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) Get(ctx *gin.Context) {
	a, err := c.Service.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, a)
}

// @Summary Known assessment categories
// @Tags assessments
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/assessments/categories [get]
func (c *AssessmentController) Categories(ctx *gin.Context) {
	util.Success(ctx, c.Service.Categories())
}
