package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// PresenceStore live connection count per user, shared by every node
type PresenceStore interface {
	Incr(ctx context.Context, userID string) (int64, error)
	Decr(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// RedisPresence presence counters in redis
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence ttl bounds how long a counter leaked by a crashed node survives
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return "chat:presence:" + userID
}

// Incr one more live connection
func (p *RedisPresence) Incr(ctx context.Context, userID string) (int64, error) {
	pipe := p.client.TxPipeline()
	incr := pipe.Incr(ctx, presenceKey(userID))
	pipe.Expire(ctx, presenceKey(userID), p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Decr one less live connection, never below zero
func (p *RedisPresence) Decr(ctx context.Context, userID string) (int64, error) {
	n, err := p.client.Decr(ctx, presenceKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		if err := p.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return n, nil
}

// Count live connections on all nodes
func (p *RedisPresence) Count(ctx context.Context, userID string) (int64, error) {
	n, err := p.client.Get(ctx, presenceKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
