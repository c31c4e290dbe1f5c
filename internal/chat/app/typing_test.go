package app

import (
	"context"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func typingEvent(chatID, from string, typing bool) domain.Event {
	return domain.Event{
		Action:  domain.ActionTypingStatus,
		Payload: domain.TypingStatusPayload{ChatID: chatID, UserID: from, IsTyping: typing},
	}
}

func TestTypingRelay_StartStop(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	convRepo := new(MockConversationRepository)
	online := new(MockOnlineChecker)
	notifier := new(MockNotifier)
	relay := NewTypingRelay(convRepo, online, notifier, false)

	convRepo.On("FindByID", ctx, "c1").Return(domain.NewDirectConversation("c1", "alice", "bob", time.Now()), nil)
	online.On("IsOnline", ctx, "bob").Return(true)
	notifier.On("Notify", ctx, "bob", typingEvent("c1", "alice", true)).Return(nil).Once()
	notifier.On("Notify", ctx, "bob", typingEvent("c1", "alice", false)).Return(nil).Once()

	assert.NoError(t, relay.Start(ctx, "alice", "c1", "bob"))
	assert.Equal(t, []string{"c1"}, relay.Typing("alice"))
	assert.NoError(t, relay.Stop(ctx, "alice", "c1", ""))
	assert.Empty(t, relay.Typing("alice"))

	notifier.AssertExpectations(t)
}

func TestTypingRelay_Rejections(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	convRepo := new(MockConversationRepository)
	notifier := new(MockNotifier)
	relay := NewTypingRelay(convRepo, new(MockOnlineChecker), notifier, false)

	convRepo.On("FindByID", ctx, "c1").Return(domain.NewDirectConversation("c1", "alice", "bob", time.Now()), nil)
	convRepo.On("FindByID", ctx, "missing").Return(nil, domain.ErrNotFound)

	assert.ErrorIs(t, relay.Start(ctx, "mallory", "c1", "bob"), domain.ErrForbidden)
	assert.ErrorIs(t, relay.Start(ctx, "alice", "c1", "carol"), domain.ErrValidation)
	assert.ErrorIs(t, relay.Start(ctx, "alice", "missing", "bob"), domain.ErrNotFound)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestTypingRelay_OfflinePeerIsDropped(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	convRepo := new(MockConversationRepository)
	online := new(MockOnlineChecker)
	notifier := new(MockNotifier)
	relay := NewTypingRelay(convRepo, online, notifier, false)

	convRepo.On("FindByID", ctx, "c1").Return(domain.NewDirectConversation("c1", "alice", "bob", time.Now()), nil)
	online.On("IsOnline", ctx, "bob").Return(false)

	assert.NoError(t, relay.Start(ctx, "alice", "c1", "bob"))
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestTypingRelay_ClearOnDisconnect(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	for _, clear := range []bool{true, false} {
		convRepo := new(MockConversationRepository)
		online := new(MockOnlineChecker)
		notifier := new(MockNotifier)
		relay := NewTypingRelay(convRepo, online, notifier, clear)

		convRepo.On("FindByID", ctx, "c1").Return(domain.NewDirectConversation("c1", "alice", "bob", time.Now()), nil)
		online.On("IsOnline", ctx, "bob").Return(true)
		notifier.On("Notify", ctx, "bob", typingEvent("c1", "alice", true)).Return(nil).Once()
		if clear {
			notifier.On("Notify", ctx, "bob", typingEvent("c1", "alice", false)).Return(nil).Once()
		}

		assert.NoError(t, relay.Start(ctx, "alice", "c1", "bob"))
		relay.OnPresenceChange(ctx, "alice", true)
		relay.OnPresenceChange(ctx, "alice", false)

		notifier.AssertExpectations(t)
		if clear {
			assert.Empty(t, relay.Typing("alice"))
		} else {
			notifier.AssertNumberOfCalls(t, "Notify", 1)
		}
	}
}
