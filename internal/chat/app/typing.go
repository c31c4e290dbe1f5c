package app

import (
	"context"
	"sync"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// TypingRelay forwards typing signals to the peer, no timers
type TypingRelay struct {
	convRepo          repository.ConversationRepository
	online            OnlineChecker
	notifier          Notifier
	clearOnDisconnect bool

	mu     sync.Mutex
	active map[string]map[string]string // typing user -> conversation id -> peer
}

// NewTypingRelay clearOnDisconnect emits isTyping=false for open indicators when the typist goes offline
func NewTypingRelay(convRepo repository.ConversationRepository, online OnlineChecker, notifier Notifier, clearOnDisconnect bool) *TypingRelay {
	return &TypingRelay{
		convRepo:          convRepo,
		online:            online,
		notifier:          notifier,
		clearOnDisconnect: clearOnDisconnect,
		active:            make(map[string]map[string]string),
	}
}

// Start relay typing:start
func (t *TypingRelay) Start(ctx context.Context, fromUserID, conversationID, toUserID string) error {
	return t.signal(ctx, fromUserID, conversationID, toUserID, true)
}

// Stop relay typing:stop
func (t *TypingRelay) Stop(ctx context.Context, fromUserID, conversationID, toUserID string) error {
	return t.signal(ctx, fromUserID, conversationID, toUserID, false)
}

func (t *TypingRelay) signal(ctx context.Context, from, conversationID, to string, typing bool) error {
	conv, err := t.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(from) {
		return errprocess.Wrap(domain.ErrForbidden, "user %s is not in conversation %s", from, conversationID)
	}
	peer := conv.Counterpart(from)
	if to != "" && to != peer {
		return errprocess.Wrap(domain.ErrValidation, "receiver %s is not the counterpart in %s", to, conversationID)
	}

	t.track(from, conversationID, peer, typing)
	t.relay(ctx, from, conversationID, peer, typing)
	return nil
}

func (t *TypingRelay) track(from, conversationID, peer string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if typing {
		if t.active[from] == nil {
			t.active[from] = make(map[string]string)
		}
		t.active[from][conversationID] = peer
		return
	}
	delete(t.active[from], conversationID)
	if len(t.active[from]) == 0 {
		delete(t.active, from)
	}
}

func (t *TypingRelay) relay(ctx context.Context, from, conversationID, peer string, typing bool) {
	if !t.online.IsOnline(ctx, peer) {
		logger.Log.Debug("typing dropped, peer offline", zap.String("to", peer))
		return
	}
	evt := domain.Event{
		Action:  domain.ActionTypingStatus,
		Payload: domain.TypingStatusPayload{ChatID: conversationID, UserID: from, IsTyping: typing},
	}
	if err := t.notifier.Notify(ctx, peer, evt); err != nil {
		logger.Log.Warn("typing notify", zap.String("to", peer), zap.Error(err))
	}
}

// OnPresenceChange clears indicators left open by a user that went offline
func (t *TypingRelay) OnPresenceChange(ctx context.Context, userID string, online bool) {
	if online || !t.clearOnDisconnect {
		return
	}

	t.mu.Lock()
	open := t.active[userID]
	delete(t.active, userID)
	t.mu.Unlock()

	for conversationID, peer := range open {
		t.relay(ctx, userID, conversationID, peer, false)
	}
}

// Typing conversations userID is currently asserted to be typing in
func (t *TypingRelay) Typing(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.active[userID]))
	for id := range t.active[userID] {
		ids = append(ids, id)
	}
	return ids
}
