package app

import (
	"context"
	"strings"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// ConversationUseCase 對話建立 / 列表 / 刪除
type ConversationUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	online   OnlineChecker
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	online OnlineChecker,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		online:   online,
	}
}

// CreateDirect return the conversation between userID and otherUserID, creating it once
func (uc *ConversationUseCase) CreateDirect(ctx context.Context, userID, otherUserID string) (*domain.ConversationView, error) {
	if strings.TrimSpace(otherUserID) == "" {
		return nil, errprocess.Wrap(domain.ErrValidation, "otherUserId is required")
	}

	conv, created, err := uc.convRepo.FindOrCreateDirect(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Log.Info("conversation created", zap.String("conversationID", conv.ID), zap.Strings("participants", conv.Participants))
	}

	views := uc.views(ctx, userID, []*domain.Conversation{conv})
	return &views[0], nil
}

// List conversations of userID, most recently active first
func (uc *ConversationUseCase) List(ctx context.Context, userID string) ([]domain.ConversationView, error) {
	convs, err := uc.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.views(ctx, userID, convs), nil
}

// Delete remove a conversation and all its messages, participants only
func (uc *ConversationUseCase) Delete(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errprocess.Wrap(domain.ErrForbidden, "user %s is not in conversation %s", userID, conversationID)
	}

	if err := uc.convRepo.Delete(ctx, conv.ID); err != nil {
		return err
	}
	if err := uc.msgRepo.DeleteByConversation(ctx, conv.ID); err != nil {
		return err
	}
	logger.Log.Info("conversation deleted", zap.String("conversationID", conv.ID), zap.String("by", userID))
	return nil
}

func (uc *ConversationUseCase) views(ctx context.Context, viewerID string, convs []*domain.Conversation) []domain.ConversationView {
	var ids []string
	seen := map[string]bool{}
	for _, c := range convs {
		for _, p := range c.Participants {
			if !seen[p] {
				seen[p] = true
				ids = append(ids, p)
			}
		}
	}

	users, err := uc.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		// 個人資料查不到不影響對話列表
		logger.Log.Warn("load participants", zap.Error(err))
		users = map[string]domain.User{}
	}

	views := make([]domain.ConversationView, 0, len(convs))
	for _, c := range convs {
		participants := make([]domain.User, 0, len(c.Participants))
		for _, p := range c.Participants {
			u, ok := users[p]
			if !ok {
				u = domain.User{ID: p}
			}
			participants = append(participants, u)
		}
		views = append(views, domain.ConversationView{
			ID:           c.ID,
			Type:         c.Type,
			Participants: participants,
			LastMessage:  c.LastMessage,
			UnreadCount:  c.UnreadFor(viewerID),
			IsOnline:     uc.online.IsOnline(ctx, c.Counterpart(viewerID)),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return views
}
