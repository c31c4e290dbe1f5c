package repository

import (
	"context"
	"fmt"

	"realtime_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannel pub/sub channel of one user
func UserChannel(userID string) string {
	return "chat:user:" + userID
}

// PubSub cross node fan-out
type PubSub interface {
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe returns once the subscription is active, handler runs until ctx is done
	Subscribe(ctx context.Context, channel string, handler func(data []byte)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 發布已編碼的 frame 到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, data []byte) error {
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 訂閱 channel, 收到訊息後呼叫 handler
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(data []byte)) error {
	sub := r.client.Subscribe(ctx, channel)

	// 等待訂閱確認
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Debug("sub close", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}
