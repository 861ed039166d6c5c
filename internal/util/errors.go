package util

import "errors"

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrEmailRegistered = errors.New("该邮箱已被注册")
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrResultNotFound  = errors.New("result not found")
	ErrMaxAttempts     = errors.New("maximum attempts reached for this quiz")

	// 提交校验相关
	ErrMalformedSubmission  = errors.New("malformed submission")
	ErrIncompleteSubmission = errors.New("incomplete submission")

	// 状态机：非法状态转换（包括重复提交）
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// 外部模型错误分类
	ErrModelTransient = errors.New("external model transient error")
	ErrModelFatal     = errors.New("external model fatal error")

	// 存储层不可用，事务边界重试后仍失败
	ErrStoreUnavailable = errors.New("store unavailable")
)
