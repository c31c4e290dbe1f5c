package app

import (
	"context"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// FindOrCreateDirect mock find or create direct conversation
func (m *MockConversationRepository) FindOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

// FindByID mock find conversation by id
func (m *MockConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByParticipant mock list conversations of a user
func (m *MockConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// NextSeq mock reserve sequence
func (m *MockConversationRepository) NextSeq(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// RecordMessage mock record last message
func (m *MockConversationRepository) RecordMessage(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// RefreshLastMessage mock refresh last message
func (m *MockConversationRepository) RefreshLastMessage(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// ResetUnread mock reset unread
func (m *MockConversationRepository) ResetUnread(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

// Delete mock delete conversation
func (m *MockConversationRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock insert message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// FindByID mock find message
func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByConversation mock history page
func (m *MockMessageRepository) FindByConversation(ctx context.Context, conversationID string, page, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, page, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkDelivered mock conditional delivered update
func (m *MockMessageRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (*domain.Message, bool, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

// MarkRead mock bulk read
func (m *MockMessageRepository) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, at)
	return args.Get(0).(int64), args.Error(1)
}

// DeleteByConversation mock delete messages
func (m *MockMessageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	return m.Called(ctx, conversationID).Error(0)
}

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// FindByIDs mock profile lookup
func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier Mock Notifier
type MockNotifier struct {
	mock.Mock
}

// Notify mock push
func (m *MockNotifier) Notify(ctx context.Context, userID string, evt domain.Event) error {
	return m.Called(ctx, userID, evt).Error(0)
}

// MockOnlineChecker Mock OnlineChecker
type MockOnlineChecker struct {
	mock.Mock
}

// IsOnline mock presence
func (m *MockOnlineChecker) IsOnline(ctx context.Context, userID string) bool {
	return m.Called(ctx, userID).Bool(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish mock lifecycle publish
func (m *MockEventPublisher) Publish(ctx context.Context, evt domain.LifecycleEvent) error {
	return m.Called(ctx, evt).Error(0)
}

// MockPresenceStore Mock PresenceStore
type MockPresenceStore struct {
	mock.Mock
}

// Incr mock incr
func (m *MockPresenceStore) Incr(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// Decr mock decr
func (m *MockPresenceStore) Decr(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// Count mock count
func (m *MockPresenceStore) Count(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPresenceListener Mock PresenceListener
type MockPresenceListener struct {
	mock.Mock
}

// OnPresenceChange mock listener
func (m *MockPresenceListener) OnPresenceChange(ctx context.Context, userID string, online bool) {
	m.Called(ctx, userID, online)
}

// MockPresigner Mock Presigner
type MockPresigner struct {
	mock.Mock
}

// PresignPutURL mock put url
func (m *MockPresigner) PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// PresignGetURL mock get url
func (m *MockPresigner) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// fakeConnection records every frame sent to it
type fakeConnection struct {
	id     string
	userID string
	err    error

	mu     sync.Mutex
	frames [][]byte
}

func newFakeConnection(id, userID string) *fakeConnection {
	return &fakeConnection{id: id, userID: userID}
}

func (c *fakeConnection) ID() string     { return c.id }
func (c *fakeConnection) UserID() string { return c.userID }

func (c *fakeConnection) Send(data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConnection) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}
