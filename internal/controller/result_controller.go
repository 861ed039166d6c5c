package controller

import (
	"sa_assessment_backend/internal/service"
	"sa_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Results  *service.ResultService
	Attempts *service.AttemptService
}

func NewResultController(results *service.ResultService, attempts *service.AttemptService) *ResultController {
	return &ResultController{Results: results, Attempts: attempts}
}

// GetResult godoc
// @Summary 测评结果
// @Description 返回评分结果与推荐文本。推荐生成中时 recommendation.status 为 pending
// @Tags 结果
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=service.ResultView}
// @Failure 404 {object} util.Response "结果不存在"
// @Router /api/attempts/{attemptId}/result [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Results.GetResult(ctx.Request.Context(), ctx.Param("attemptId"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// ListAttempts godoc
// @Summary 我的尝试列表
// @Tags 结果
// @Produce  json
// @Security BearerAuth
// @Param   quizId query string false "按测评过滤"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/attempts [get]
func (c *ResultController) ListAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Attempts.List(ctx.Request.Context(), claims.UserID, ctx.Query("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// RetryRecommendation godoc
// @Summary 重试推荐生成
// @Description 仅对生成失败的尝试有效，重新排队后台生成
// @Tags 结果
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "尝试不存在"
// @Failure 409 {object} util.Response "当前状态不允许重试"
// @Router /api/attempts/{attemptId}/recommendation/retry [post]
func (c *ResultController) RetryRecommendation(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Results.RetryRecommendation(ctx.Request.Context(), ctx.Param("attemptId"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
	})
}
