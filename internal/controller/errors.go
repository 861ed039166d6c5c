package controller

import (
	"errors"
	"net/http"

	"sa_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 把服务层错误折算成 HTTP 状态码，未归类的错误按 500 处理
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrResultNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrMaxAttempts):
		util.Conflict(ctx, "已达到该测评的尝试次数上限")
	case errors.Is(err, util.ErrInvalidStateTransition):
		util.Conflict(ctx, "当前状态不允许该操作")
	case errors.Is(err, util.ErrMalformedSubmission):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrIncompleteSubmission):
		util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, util.ErrStoreUnavailable):
		util.Error(ctx, http.StatusServiceUnavailable, "存储暂不可用，请稍后重试")
	default:
		util.LogInternalError(ctx, err)
	}
}
