package database

import (
	"fmt"
	"time"

	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// retry 重試 connect 直到成功, count < 1 視為只試一次
// interval 以秒為單位, 與 yaml 的 retry_interval 一致
func retry[T any](name string, count int, interval time.Duration, connect func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	if count < 1 {
		count = 1
	}

	for attempt := 1; attempt <= count; attempt++ {
		if v, err = connect(); err == nil {
			logger.Log.Info(name+" connected", zap.Int("attempt", attempt))
			return v, nil
		}
		logger.Log.Warn(name+" connect failed", zap.Int("attempt", attempt), zap.Int("max", count), zap.Error(err))
		if attempt < count {
			time.Sleep(interval * time.Second)
		}
	}
	return v, fmt.Errorf("%s not ready after %d attempts: %w", name, count, err)
}
