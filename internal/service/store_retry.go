package service

import (
	"errors"
	"sa_assessment_backend/internal/util"
	"time"
)

const storeRetryAttempts = 3

// withStoreRetry 在事务边界做有限次重试。客户端错误（非法状态转换等）
// 不重试；重试耗尽后归类为 StoreUnavailable，行保持上一次落盘状态
func withStoreRetry(fn func() error) error {
	var lastErr error
	for i := 0; i < storeRetryAttempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, util.ErrInvalidStateTransition) ||
			errors.Is(err, util.ErrAttemptNotFound) {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	return errors.Join(util.ErrStoreUnavailable, lastErr)
}
