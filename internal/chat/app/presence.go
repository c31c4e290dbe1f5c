package app

import (
	"context"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PresencePublisher tells counterparts when a user comes online or goes offline
type PresencePublisher struct {
	convRepo repository.ConversationRepository
	online   OnlineChecker
	notifier Notifier
}

// NewPresencePublisher create PresencePublisher
func NewPresencePublisher(convRepo repository.ConversationRepository, online OnlineChecker, notifier Notifier) *PresencePublisher {
	return &PresencePublisher{convRepo: convRepo, online: online, notifier: notifier}
}

// OnPresenceChange best-effort, offline counterparts are skipped
func (p *PresencePublisher) OnPresenceChange(ctx context.Context, userID string, online bool) {
	convs, err := p.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		logger.Log.Error("presence list conversations", zap.String("userID", userID), zap.Error(err))
		return
	}

	evt := domain.Event{
		Action:  domain.ActionPresenceChanged,
		Payload: domain.PresencePayload{UserID: userID, IsOnline: online},
	}

	seen := map[string]bool{userID: true}
	for _, c := range convs {
		other := c.Counterpart(userID)
		if seen[other] {
			continue
		}
		seen[other] = true

		if !p.online.IsOnline(ctx, other) {
			continue
		}
		if err := p.notifier.Notify(ctx, other, evt); err != nil {
			logger.Log.Warn("presence notify", zap.String("to", other), zap.Error(err))
		}
	}
}
