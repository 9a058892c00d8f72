package controller

import (
	"errors"

	"fcr_assist_backend/internal/service"
	"fcr_assist_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	Service *service.SubmissionService
}

func NewSubmissionController(svc *service.SubmissionService) *SubmissionController {
	return &SubmissionController{Service: svc}
}

// AnswerSetRequest carries the full current value map, keyed by
// question id, exactly as the form renderer reports it.
type AnswerSetRequest struct {
	Values map[string]interface{} `json:"values" binding:"required"`
}

// @Summary Enter an assessment: find or create the submission
// @Tags submissions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submission [post]
func (c *SubmissionController) Enter(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.Enter(claims.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSubmissionInit) {
			util.Error(ctx, 502, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Report an answer change (debounced autosave)
// @Tags submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Param body body AnswerSetRequest true "full current value map"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submission/answers [put]
func (c *SubmissionController) Notify(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req AnswerSetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.Notify(claims.UserID, ctx.Param("id"), req.Values); err != nil {
		c.mapSessionError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"scheduled": true})
}

// @Summary Manual save: flush the latest answers immediately
// @Tags submissions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submission/save [post]
func (c *SubmissionController) Save(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.Save(claims.UserID, ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrSessionNotFound) || errors.Is(err, util.ErrSubmissionCompleted) {
			c.mapSessionError(ctx, err)
			return
		}
		util.BadGateway(ctx, "save failed, answers are kept and will be retried")
		return
	}

	util.Success(ctx, gin.H{"saved": true})
}

// @Summary Leave the assessment view (best-effort final flush)
// @Tags submissions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submission/exit [post]
func (c *SubmissionController) Exit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.Exit(claims.UserID, ctx.Param("id")); err != nil {
		// Exiting without a live session is not an error worth surfacing.
		util.Success(ctx, gin.H{"flushed": false})
		return
	}

	util.Success(ctx, gin.H{"flushed": true})
}

// @Summary Complete the assessment (terminal, idempotent)
// @Tags submissions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "assessment id"
// @Param body body AnswerSetRequest true "final value map"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submission/complete [post]
func (c *SubmissionController) Complete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req AnswerSetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.Service.Complete(claims.UserID, ctx.Param("id"), req.Values)
	if err != nil {
		if errors.Is(err, util.ErrCompletionFailed) {
			// State unchanged; the client keeps its answers and retries.
			util.BadGateway(ctx, err.Error())
			return
		}
		if errors.Is(err, util.ErrSubmissionInit) {
			util.Error(ctx, 502, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, submission)
}

func (c *SubmissionController) mapSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.Error(ctx, 409, err.Error())
	case errors.Is(err, util.ErrSubmissionCompleted):
		util.Error(ctx, 409, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
