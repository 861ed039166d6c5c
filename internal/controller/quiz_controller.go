package controller

import (
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/service"
	"sa_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Content  *service.ContentService
	Attempts *service.AttemptService
}

func NewQuizController(content *service.ContentService, attempts *service.AttemptService) *QuizController {
	return &QuizController{Content: content, Attempts: attempts}
}

// GetQuiz godoc
// @Summary 测评元数据
// @Description 返回测评标题、分类、等级与作答设置，不含题目
// @Tags 测评
// @Produce  json
// @Security BearerAuth
// @Param   quizId path string true "测评 ID"
// @Success 200 {object} util.Response{data=model.QuizContent}
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/quizzes/{quizId} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	content, err := c.Content.GetQuiz(ctx.Request.Context(), ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// StartAttempt godoc
// @Summary 开始一次测评
// @Description 创建新尝试并返回脱敏后的题目列表
// @Tags 测评
// @Produce  json
// @Security BearerAuth
// @Param   quizId path string true "测评 ID"
// @Success 201 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "测评不存在"
// @Failure 409 {object} util.Response "已达尝试次数上限"
// @Router /api/quizzes/{quizId}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.Start(ctx.Request.Context(), claims.UserID, ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	attempt, content, questions, err := c.Attempts.Begin(ctx.Request.Context(), attempt.ID, claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
		"startedAt": attempt.StartedAt,
		"settings":  content.Settings,
		"questions": questions,
	})
}

// GetQuestions godoc
// @Summary 作答题目列表
// @Description 返回尝试对应的题目（不含答案），首次调用把尝试推进到作答中
// @Tags 测评
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "尝试不存在"
// @Failure 409 {object} util.Response "尝试已结束或已过期"
// @Router /api/attempts/{attemptId}/questions [get]
func (c *QuizController) GetQuestions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, content, questions, err := c.Attempts.Begin(ctx.Request.Context(), ctx.Param("attemptId"), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
		"settings":  content.Settings,
		"questions": questions,
	})
}

type SubmitRequest struct {
	Answers []model.SubmittedAnswer `json:"answers" binding:"required"`
}

// Submit godoc
// @Summary 提交答卷
// @Description 校验并评分，返回分数、等级与分类明细；推荐文本异步生成
// @Tags 测评
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path string true "尝试 ID"
// @Param   body body SubmitRequest true "答卷"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "答卷格式错误"
// @Failure 409 {object} util.Response "重复提交或状态不允许"
// @Failure 422 {object} util.Response "答卷不完整"
// @Router /api/attempts/{attemptId}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, result, err := c.Attempts.Submit(ctx.Request.Context(), ctx.Param("attemptId"), claims.UserID, req.Answers)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"attemptId":       attempt.ID,
		"status":          attempt.Status,
		"score":           result.Overall,
		"level":           result.Level,
		"passed":          result.Passed,
		"categoryScores":  result.CategoryScores,
		"strengths":       result.Strengths,
		"weaknesses":      result.Weaknesses,
		"questionDetails": result.QuestionDetails,
	})
}
