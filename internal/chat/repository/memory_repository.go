package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/google/uuid"
)

// MemoryConversationRepository in-process ConversationRepository for storage: memory
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation // id -> conversation
	pairIndex     map[string]string               // pair key -> id
}

// NewMemoryConversationRepository create MemoryConversationRepository
func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]*domain.Conversation),
		pairIndex:     make(map[string]string),
	}
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Unread = make(map[string]int, len(c.Unread))
	for k, v := range c.Unread {
		out.Unread[k] = v
	}
	if c.LastMessage != nil {
		out.LastMessage = copyMessage(c.LastMessage)
	}
	return &out
}

// FindOrCreateDirect see ConversationRepository
func (s *MemoryConversationRepository) FindOrCreateDirect(_ context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.PairKey(userA, userB)
	if id, ok := s.pairIndex[key]; ok {
		return copyConversation(s.conversations[id]), false, nil
	}

	conv := domain.NewDirectConversation(uuid.NewString(), userA, userB, domain.Now())
	s.conversations[conv.ID] = conv
	s.pairIndex[key] = conv.ID
	return copyConversation(conv), true, nil
}

// FindByID see ConversationRepository
func (s *MemoryConversationRepository) FindByID(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return copyConversation(conv), nil
}

// ListByParticipant see ConversationRepository
func (s *MemoryConversationRepository) ListByParticipant(_ context.Context, userID string) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Conversation{}
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			result = append(result, copyConversation(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// NextSeq see ConversationRepository
func (s *MemoryConversationRepository) NextSeq(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return 0, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	conv.MessageSeq++
	return conv.MessageSeq, nil
}

// RecordMessage see ConversationRepository
func (s *MemoryConversationRepository) RecordMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[m.ConversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, m.ConversationID)
	}
	conv.Unread[m.RecipientID]++
	// 併發送出時較舊的訊息可能較晚寫入
	if conv.LastMessage != nil && conv.LastMessage.Seq > m.Seq {
		return nil
	}
	conv.LastMessage = copyMessage(m)
	conv.UpdatedAt = m.CreatedAt
	return nil
}

// RefreshLastMessage see ConversationRepository
func (s *MemoryConversationRepository) RefreshLastMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[m.ConversationID]
	if ok && conv.LastMessage != nil && conv.LastMessage.ID == m.ID {
		conv.LastMessage = copyMessage(m)
	}
	return nil
}

// ResetUnread see ConversationRepository
func (s *MemoryConversationRepository) ResetUnread(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[id]; ok {
		conv.Unread[userID] = 0
	}
	return nil
}

// Delete see ConversationRepository
func (s *MemoryConversationRepository) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	delete(s.pairIndex, conv.PairKey)
	delete(s.conversations, id)
	return nil
}

// MemoryMessageRepository in-process MessageRepository for storage: memory
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*domain.Message // id -> message
	byConv   map[string][]string        // conversation id -> message ids in seq order
}

// NewMemoryMessageRepository create MemoryMessageRepository
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[string]*domain.Message),
		byConv:   make(map[string][]string),
	}
}

func copyMessage(m *domain.Message) *domain.Message {
	out := *m
	out.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	if m.DeliveredAt != nil {
		t := *m.DeliveredAt
		out.DeliveredAt = &t
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		out.ReadAt = &t
	}
	return &out
}

// Insert see MessageRepository
func (s *MemoryMessageRepository) Insert(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[m.ID]; ok {
		return fmt.Errorf("message %s already exists", m.ID)
	}
	s.messages[m.ID] = copyMessage(m)

	ids := append(s.byConv[m.ConversationID], m.ID)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.messages[ids[i]].Seq < s.messages[ids[j]].Seq
	})
	s.byConv[m.ConversationID] = ids
	return nil
}

// FindByID see MessageRepository
func (s *MemoryMessageRepository) FindByID(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	return copyMessage(m), nil
}

// FindByConversation see MessageRepository
func (s *MemoryMessageRepository) FindByConversation(_ context.Context, conversationID string, page, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byConv[conversationID]
	skip, ok := pageSkip(page, limit)
	if !ok || skip >= int64(len(ids)) {
		return []*domain.Message{}, nil
	}
	end := len(ids) - int(skip)
	start := end - limit
	if start < 0 {
		start = 0
	}

	result := make([]*domain.Message, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, copyMessage(s.messages[id]))
	}
	return result, nil
}

// MarkDelivered see MessageRepository
func (s *MemoryMessageRepository) MarkDelivered(_ context.Context, id string, at time.Time) (*domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	changed := m.MarkDelivered(at)
	return copyMessage(m), changed, nil
}

// MarkRead see MessageRepository
func (s *MemoryMessageRepository) MarkRead(_ context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range s.byConv[conversationID] {
		m := s.messages[id]
		if m.RecipientID == readerID && m.MarkRead(at) {
			count++
		}
	}
	return count, nil
}

// DeleteByConversation see MessageRepository
func (s *MemoryMessageRepository) DeleteByConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byConv[conversationID] {
		delete(s.messages, id)
	}
	delete(s.byConv, conversationID)
	return nil
}

// MemoryUserRepository fixed profile set, used in memory mode and tests
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository create MemoryUserRepository
func NewMemoryUserRepository(users ...domain.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// Put add or replace a profile
func (r *MemoryUserRepository) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// FindByIDs see UserRepository
func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []string) (map[string]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}
