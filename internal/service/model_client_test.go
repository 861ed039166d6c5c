package service

import (
	"context"
	"errors"
	"testing"

	"sa_assessment_backend/internal/util"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyModelError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"限流可重试", &openai.APIError{HTTPStatusCode: 429}, util.ErrModelTransient},
		{"服务端错误可重试", &openai.APIError{HTTPStatusCode: 503}, util.ErrModelTransient},
		{"鉴权失败不可重试", &openai.APIError{HTTPStatusCode: 401}, util.ErrModelFatal},
		{"请求格式错误不可重试", &openai.APIError{HTTPStatusCode: 400}, util.ErrModelFatal},
		{"超时可重试", context.DeadlineExceeded, util.ErrModelTransient},
		{"未知错误按瞬时处理", errors.New("connection reset"), util.ErrModelTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyModelError(tc.err), tc.want)
		})
	}
}

func TestClassifyModelError_CanceledPassesThrough(t *testing.T) {
	err := classifyModelError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, util.ErrModelTransient)
	assert.NotErrorIs(t, err, util.ErrModelFatal)
}
