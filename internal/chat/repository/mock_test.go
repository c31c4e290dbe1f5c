package repository

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
)

// MockMessageWriter Mock kafka writer
type MockMessageWriter struct {
	mock.Mock
}

// WriteMessages moke write kafka messages
func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

// MockUserCache Mock RedisRepository[domain.User]
type MockUserCache struct {
	mock.Mock
}

// Set moke set
func (m *MockUserCache) Set(ctx context.Context, key string, value domain.User, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// Get moke get
func (m *MockUserCache) Get(ctx context.Context, key string) (domain.User, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.User), args.Error(1)
}

var _ database.RedisRepository[domain.User] = (*MockUserCache)(nil)
