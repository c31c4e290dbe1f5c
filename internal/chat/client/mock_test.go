package client

import (
	"context"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockTransport Mock Transport
type MockTransport struct {
	mock.Mock
	events chan domain.WSResponse
}

func newMockTransport() *MockTransport {
	return &MockTransport{events: make(chan domain.WSResponse, 16)}
}

// Request mock request
func (m *MockTransport) Request(ctx context.Context, action domain.Action, payload, out interface{}) error {
	return m.Called(ctx, action, payload, out).Error(0)
}

// Emit mock emit
func (m *MockTransport) Emit(ctx context.Context, action domain.Action, payload interface{}) error {
	return m.Called(ctx, action, payload).Error(0)
}

// Events mock push stream
func (m *MockTransport) Events() <-chan domain.WSResponse {
	return m.events
}
