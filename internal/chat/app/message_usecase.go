package app

import (
	"context"
	"math"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// History page size bounds
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// SendInput message:send request
type SendInput struct {
	ConversationID string
	SenderID       string
	// ReceiverID optional, must be the counterpart when set
	ReceiverID  string
	Content     string
	Attachments []domain.Attachment
	ClientID    string
}

// MessageUseCase 訊息傳遞與回執
type MessageUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	online   OnlineChecker
	notifier Notifier
	events   repository.EventPublisher
	now      func() time.Time
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	online OnlineChecker,
	notifier Notifier,
	events repository.EventPublisher,
) *MessageUseCase {
	if events == nil {
		events = repository.NopEventPublisher{}
	}
	return &MessageUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		online:   online,
		notifier: notifier,
		events:   events,
		now:      domain.Now,
	}
}

func (uc *MessageUseCase) participantConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "user %s is not in conversation %s", userID, conversationID)
	}
	return conv, nil
}

// Send persist a message and push it to the recipient when online
func (uc *MessageUseCase) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if err := domain.ValidateContent(in.Content, in.Attachments); err != nil {
		return nil, err
	}

	conv, err := uc.participantConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	recipient := conv.Counterpart(in.SenderID)
	if in.ReceiverID != "" && in.ReceiverID != recipient {
		return nil, errprocess.Wrap(domain.ErrValidation, "receiver %s is not the counterpart in %s", in.ReceiverID, conv.ID)
	}

	seq, err := uc.convRepo.NextSeq(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		RecipientID:    recipient,
		ClientID:       in.ClientID,
		Content:        in.Content,
		Attachments:    in.Attachments,
		Seq:            seq,
		CreatedAt:      uc.now(),
	}
	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	// 訊息已持久化, 對話摘要失敗只記錄
	if err := uc.convRepo.RecordMessage(ctx, msg); err != nil {
		logger.Log.Error("record last message", zap.String("conversationID", conv.ID), zap.Error(err))
	}

	uc.push(ctx, recipient, domain.Event{Action: domain.ActionMessageReceived, Payload: msg})
	uc.publish(ctx, domain.LifecycleEvent{
		Type:           domain.LifecycleSent,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		RecipientID:    recipient,
		At:             msg.CreatedAt,
	})

	return msg, nil
}

// MarkDelivered recipient acknowledgment, repeated calls return the existing state
func (uc *MessageUseCase) MarkDelivered(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != userID {
		return nil, errprocess.Wrap(domain.ErrForbidden, "user %s is not the recipient of %s", userID, messageID)
	}
	if msg.DeliveredAt != nil {
		return msg, nil
	}

	updated, changed, err := uc.msgRepo.MarkDelivered(ctx, messageID, uc.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	if err := uc.convRepo.RefreshLastMessage(ctx, updated); err != nil {
		logger.Log.Warn("refresh last message", zap.String("messageID", messageID), zap.Error(err))
	}

	uc.push(ctx, updated.SenderID, domain.Event{
		Action: domain.ActionMessageDelivered,
		Payload: domain.DeliveredPushPayload{
			MessageID:   updated.ID,
			ChatID:      updated.ConversationID,
			DeliveredAt: *updated.DeliveredAt,
		},
	})
	uc.publish(ctx, domain.LifecycleEvent{
		Type:           domain.LifecycleDelivered,
		ConversationID: updated.ConversationID,
		MessageID:      updated.ID,
		SenderID:       updated.SenderID,
		RecipientID:    updated.RecipientID,
		At:             *updated.DeliveredAt,
	})
	return updated, nil
}

// MarkRead mark every unread message addressed to readerID as read and reset its unread count
func (uc *MessageUseCase) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := uc.participantConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}

	now := uc.now()
	count, err := uc.msgRepo.MarkRead(ctx, conv.ID, readerID, now)
	if err != nil {
		return 0, err
	}
	if err := uc.convRepo.ResetUnread(ctx, conv.ID, readerID); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	if last := conv.LastMessage; last != nil && last.RecipientID == readerID && last.MarkRead(now) {
		if err := uc.convRepo.RefreshLastMessage(ctx, last); err != nil {
			logger.Log.Warn("refresh last message", zap.String("conversationID", conv.ID), zap.Error(err))
		}
	}

	sender := conv.Counterpart(readerID)
	uc.push(ctx, sender, domain.Event{
		Action:  domain.ActionMessagesRead,
		Payload: domain.MessagesReadPayload{ChatID: conv.ID, ReaderID: readerID, ReadAt: now},
	})
	uc.publish(ctx, domain.LifecycleEvent{
		Type:           domain.LifecycleRead,
		ConversationID: conv.ID,
		SenderID:       sender,
		RecipientID:    readerID,
		Count:          count,
		At:             now,
	})
	return count, nil
}

// History one page of a conversation, oldest first
func (uc *MessageUseCase) History(ctx context.Context, userID, conversationID string, page, limit int) ([]*domain.Message, error) {
	if _, err := uc.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	limit = pkg.Clamp(limit, DefaultPageLimit, 1, MaxPageLimit)
	// 超過任何對話可能的長度
	if page > math.MaxInt/limit {
		return []*domain.Message{}, nil
	}
	return uc.msgRepo.FindByConversation(ctx, conversationID, page, limit)
}

// push fire-and-forget, an offline user is a normal state
func (uc *MessageUseCase) push(ctx context.Context, userID string, evt domain.Event) {
	if !uc.online.IsOnline(ctx, userID) {
		logger.Log.Debug("push skipped", zap.String("userID", userID), zap.String("action", string(evt.Action)), zap.Error(domain.ErrRecipientOffline))
		return
	}
	if err := uc.notifier.Notify(ctx, userID, evt); err != nil {
		logger.Log.Warn("push failed", zap.String("userID", userID), zap.String("action", string(evt.Action)), zap.Error(err))
	}
}

func (uc *MessageUseCase) publish(ctx context.Context, evt domain.LifecycleEvent) {
	if err := uc.events.Publish(ctx, evt); err != nil {
		logger.Log.Warn("lifecycle publish", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}
