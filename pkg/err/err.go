package errprocess

import (
	"errors"
	"fmt"

	"realtime_chat_service/pkg/logger"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap 以 kind 包裝, 呼叫端可用 errors.Is 判斷種類.
// 不記錄, 由回應的 handler 依種類記錄一次
func Wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
