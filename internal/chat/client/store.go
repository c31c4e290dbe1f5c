package client

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/config"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry one message in the selected conversation.
// ServerID is empty while the entry is provisional.
type Entry struct {
	LocalID  string
	ServerID string
	Message  domain.Message
}

// Provisional not yet acknowledged by the server
func (e Entry) Provisional() bool {
	return e.ServerID == ""
}

type typingKey struct {
	chatID string
	userID string
}

// Store local mirror of the conversation list and the selected conversation
type Store struct {
	transport  Transport
	userID     string
	typingIdle time.Duration
	pageLimit  int
	notify     func(error)
	onChange   func()

	mu              sync.Mutex
	chats           []domain.ConversationView
	selected        *domain.ConversationView
	entries         []Entry
	peerTyping      map[typingKey]*time.Timer
	typingTimer     *time.Timer
	typingChat      string
	typingPeer      string
	loadingChats    bool
	loadingMessages bool
	refreshing      bool
}

// NewStore notify receives every user-visible failure, may be nil
func NewStore(transport Transport, userID string, cfg config.Client, notify func(error)) *Store {
	cfg.SetDefaults()
	if notify == nil {
		notify = func(error) {}
	}
	return &Store{
		transport:  transport,
		userID:     userID,
		typingIdle: cfg.TypingIdle,
		pageLimit:  cfg.PageLimit,
		notify:     notify,
		onChange:   func() {},
		peerTyping: make(map[typingKey]*time.Timer),
	}
}

// OnChange called after every state mutation, call before Run
func (s *Store) OnChange(fn func()) {
	s.onChange = fn
}

func (s *Store) changed() {
	s.onChange()
}

func (s *Store) fail(err error) error {
	logger.Log.Warn("chat store", zap.Error(err))
	s.notify(err)
	return err
}

// Chats snapshot of the conversation list
func (s *Store) Chats() []domain.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ConversationView(nil), s.chats...)
}

// Selected the open conversation, nil when none
func (s *Store) Selected() *domain.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	v := *s.selected
	return &v
}

// Entries snapshot of the selected conversation, oldest first
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Loading chats / messages in flight
func (s *Store) Loading() (chats, messages bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingChats, s.loadingMessages
}

// IsTyping peer typing indicator
func (s *Store) IsTyping(chatID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.peerTyping[typingKey{chatID, userID}]
	return ok
}

// FetchChats replace the conversation list, a failure leaves it untouched
func (s *Store) FetchChats(ctx context.Context) error {
	s.setLoading(&s.loadingChats, true)
	defer s.setLoading(&s.loadingChats, false)

	var views []domain.ConversationView
	if err := s.transport.Request(ctx, domain.ActionListChats, nil, &views); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.chats = views
	if s.selected != nil {
		if i := s.chatIndex(s.selected.ID); i >= 0 {
			v := s.chats[i]
			s.selected = &v
		}
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// SelectConversation clear, load history, then mark the conversation read
func (s *Store) SelectConversation(ctx context.Context, conv domain.ConversationView) error {
	s.stopTyping(ctx)

	s.mu.Lock()
	s.selected = &conv
	s.entries = nil
	s.mu.Unlock()
	s.changed()

	if err := s.FetchMessages(ctx, conv.ID, 1); err != nil {
		return err
	}

	var res domain.MarkReadResult
	err := s.transport.Request(ctx, domain.ActionMarkRead, domain.MarkReadPayload{
		ChatID:      conv.ID,
		UserID:      s.userID,
		OtherUserID: conv.OtherParticipant(s.userID),
	}, &res)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if i := s.chatIndex(conv.ID); i >= 0 {
		s.chats[i].UnreadCount = 0
	}
	if s.selected != nil && s.selected.ID == conv.ID {
		s.selected.UnreadCount = 0
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// FetchMessages load one history page and acknowledge undelivered messages addressed to us.
// The page is merged only while chatID is the selected conversation.
func (s *Store) FetchMessages(ctx context.Context, chatID string, page int) error {
	s.setLoading(&s.loadingMessages, true)
	defer s.setLoading(&s.loadingMessages, false)

	var msgs []domain.Message
	err := s.transport.Request(ctx, domain.ActionListMessages, domain.ListMessagesPayload{
		ChatID: chatID,
		Page:   page,
		Limit:  s.pageLimit,
	}, &msgs)
	if err != nil {
		return s.fail(err)
	}

	// 收到即 delivered, 與是否仍在畫面上無關
	var acks []domain.Message
	s.mu.Lock()
	inView := s.selected != nil && s.selected.ID == chatID
	for _, m := range msgs {
		if inView {
			s.mergePersisted(m)
		}
		if m.RecipientID == s.userID && m.DeliveredAt == nil {
			acks = append(acks, m)
		}
	}
	s.mu.Unlock()

	for _, m := range acks {
		s.ackDelivered(ctx, m)
	}
	s.changed()
	return nil
}

// CreateDirect open (or find) the conversation with otherUserID
func (s *Store) CreateDirect(ctx context.Context, otherUserID string) (*domain.ConversationView, error) {
	var view domain.ConversationView
	if err := s.transport.Request(ctx, domain.ActionCreateDirect, domain.CreateDirectPayload{OtherUserID: otherUserID}, &view); err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if i := s.chatIndex(view.ID); i >= 0 {
		s.chats[i] = view
	} else {
		s.chats = append([]domain.ConversationView{view}, s.chats...)
	}
	s.mu.Unlock()
	s.changed()
	return &view, nil
}

// DeleteConversation delete on the server, then locally
func (s *Store) DeleteConversation(ctx context.Context, chatID string) error {
	if err := s.transport.Request(ctx, domain.ActionDeleteChat, domain.DeleteChatPayload{ChatID: chatID}, nil); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if i := s.chatIndex(chatID); i >= 0 {
		s.chats = append(s.chats[:i], s.chats[i+1:]...)
	}
	if s.selected != nil && s.selected.ID == chatID {
		s.selected = nil
		s.entries = nil
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// Send optimistic send into the selected conversation.
// On failure the provisional entry is removed and the error returned.
func (s *Store) Send(ctx context.Context, content string, attachments []domain.Attachment) (*domain.Message, error) {
	s.stopTyping(ctx)

	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, s.fail(errprocess.Wrap(domain.ErrValidation, "no conversation selected"))
	}
	conv := *s.selected
	localID := uuid.New().String()
	s.entries = append(s.entries, Entry{
		LocalID: localID,
		Message: domain.Message{
			ID:             localID,
			ConversationID: conv.ID,
			SenderID:       s.userID,
			RecipientID:    conv.OtherParticipant(s.userID),
			ClientID:       localID,
			Content:        content,
			Attachments:    attachments,
			CreatedAt:      time.Now(),
		},
	})
	s.mu.Unlock()
	s.changed()

	var msg domain.Message
	err := s.transport.Request(ctx, domain.ActionSendMessage, domain.SendMessagePayload{
		ConversationID: conv.ID,
		SenderID:       s.userID,
		ReceiverID:     conv.OtherParticipant(s.userID),
		Content:        content,
		Attachments:    attachments,
		ClientID:       localID,
	}, &msg)
	if err != nil {
		s.mu.Lock()
		s.removeLocal(localID)
		s.mu.Unlock()
		s.changed()
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if msg.ClientID == "" {
		msg.ClientID = localID
	}
	if s.selected != nil && s.selected.ID == msg.ConversationID {
		s.mergePersisted(msg)
	}
	s.touchChat(msg, false)
	s.mu.Unlock()
	s.changed()
	return &msg, nil
}

// Keystroke assert typing and restart the idle timer that emits typing:stop
func (s *Store) Keystroke(ctx context.Context) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	chatID, peer := s.selected.ID, s.selected.OtherParticipant(s.userID)
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingChat, s.typingPeer = chatID, peer
	var timer *time.Timer
	timer = time.AfterFunc(s.typingIdle, func() {
		s.mu.Lock()
		self := timer
		s.mu.Unlock()
		s.endTyping(context.Background(), self)
	})
	s.typingTimer = timer
	s.mu.Unlock()

	s.emit(ctx, domain.ActionTypingStart, domain.TypingPayload{ChatID: chatID, UserID: s.userID, ReceiverID: peer})
}

// stopTyping emit typing:stop once if a typing assertion is open
func (s *Store) stopTyping(ctx context.Context) {
	s.endTyping(ctx, nil)
}

// endTyping only is set by an expiring timer, a newer keystroke already replaced it
func (s *Store) endTyping(ctx context.Context, only *time.Timer) {
	s.mu.Lock()
	if s.typingTimer == nil || (only != nil && s.typingTimer != only) {
		s.mu.Unlock()
		return
	}
	s.typingTimer.Stop()
	s.typingTimer = nil
	chatID, peer := s.typingChat, s.typingPeer
	s.mu.Unlock()

	s.emit(ctx, domain.ActionTypingStop, domain.TypingPayload{ChatID: chatID, UserID: s.userID, ReceiverID: peer})
}

// Run apply server pushes until ctx is done or the transport closes
func (s *Store) Run(ctx context.Context) {
	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.Dispatch(ctx, evt)
		}
	}
}

// Dispatch apply one server push
func (s *Store) Dispatch(ctx context.Context, evt domain.WSResponse) {
	var err error
	switch evt.Action {
	case domain.ActionMessageReceived:
		var m domain.Message
		if err = json.Unmarshal(evt.Payload, &m); err == nil {
			s.OnMessagePush(ctx, m)
		}
	case domain.ActionMessageDelivered:
		var p domain.DeliveredPushPayload
		if err = json.Unmarshal(evt.Payload, &p); err == nil {
			s.OnDeliveredPush(p)
		}
	case domain.ActionMessagesRead:
		var p domain.MessagesReadPayload
		if err = json.Unmarshal(evt.Payload, &p); err == nil {
			s.OnReadPush(p)
		}
	case domain.ActionTypingStatus:
		var p domain.TypingStatusPayload
		if err = json.Unmarshal(evt.Payload, &p); err == nil {
			s.OnTypingStatus(p)
		}
	case domain.ActionPresenceChanged:
		var p domain.PresencePayload
		if err = json.Unmarshal(evt.Payload, &p); err == nil {
			s.OnPresence(p)
		}
	case domain.ActionError:
		s.notify(&RequestError{Action: evt.Action, Code: evt.Code, Message: evt.Error})
	default:
		logger.Log.Debug("unhandled push", zap.String("action", string(evt.Action)))
	}
	if err != nil {
		logger.Log.Warn("decode push", zap.String("action", string(evt.Action)), zap.Error(err))
	}
}

// OnMessagePush new message from the server
func (s *Store) OnMessagePush(ctx context.Context, m domain.Message) {
	s.mu.Lock()
	inView := s.selected != nil && s.selected.ID == m.ConversationID
	if inView {
		s.mergePersisted(m)
		delete(s.peerTyping, typingKey{m.ConversationID, m.SenderID})
	}
	known := s.touchChat(m, !inView && m.RecipientID == s.userID)
	refresh := !known && !s.refreshing
	if refresh {
		s.refreshing = true
	}
	s.mu.Unlock()

	if inView && m.RecipientID == s.userID && m.DeliveredAt == nil {
		s.ackDelivered(ctx, m)
	}
	// 新對象的第一則訊息, 對話還不在列表中
	if refresh {
		go s.refreshChats(ctx)
	}
	s.changed()
}

func (s *Store) refreshChats(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()
	_ = s.FetchChats(ctx)
}

// OnDeliveredPush our message reached the recipient
func (s *Store) OnDeliveredPush(p domain.DeliveredPushPayload) {
	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ServerID == p.MessageID {
			s.entries[i].Message.MarkDelivered(p.DeliveredAt)
		}
	}
	if i := s.chatIndex(p.ChatID); i >= 0 {
		if last := s.chats[i].LastMessage; last != nil && last.ID == p.MessageID {
			last.MarkDelivered(p.DeliveredAt)
		}
	}
	s.mu.Unlock()
	s.changed()
}

// OnReadPush the counterpart read the conversation, every held message becomes read
func (s *Store) OnReadPush(p domain.MessagesReadPayload) {
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == p.ChatID {
		for i := range s.entries {
			if !s.entries[i].Provisional() {
				s.entries[i].Message.MarkRead(p.ReadAt)
			}
		}
	}
	if i := s.chatIndex(p.ChatID); i >= 0 {
		if last := s.chats[i].LastMessage; last != nil && last.SenderID == s.userID {
			last.MarkRead(p.ReadAt)
		}
	}
	s.mu.Unlock()
	s.changed()
}

// OnTypingStatus peer typing indicator, expires after the idle window unless refreshed
func (s *Store) OnTypingStatus(p domain.TypingStatusPayload) {
	key := typingKey{p.ChatID, p.UserID}

	s.mu.Lock()
	if t, ok := s.peerTyping[key]; ok {
		t.Stop()
		delete(s.peerTyping, key)
	}
	if p.IsTyping {
		var timer *time.Timer
		timer = time.AfterFunc(s.typingIdle, func() {
			s.mu.Lock()
			if s.peerTyping[key] == timer {
				delete(s.peerTyping, key)
			}
			s.mu.Unlock()
			s.changed()
		})
		s.peerTyping[key] = timer
	}
	s.mu.Unlock()
	s.changed()
}

// OnPresence counterpart came online or went offline
func (s *Store) OnPresence(p domain.PresencePayload) {
	s.mu.Lock()
	for i := range s.chats {
		if s.chats[i].OtherParticipant(s.userID) == p.UserID {
			s.chats[i].IsOnline = p.IsOnline
		}
	}
	if s.selected != nil && s.selected.OtherParticipant(s.userID) == p.UserID {
		s.selected.IsOnline = p.IsOnline
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) ackDelivered(ctx context.Context, m domain.Message) {
	s.emit(ctx, domain.ActionMessageDelivered, domain.DeliveredAckPayload{MessageID: m.ID, SenderID: m.SenderID})
}

func (s *Store) emit(ctx context.Context, action domain.Action, payload interface{}) {
	if err := s.transport.Emit(ctx, action, payload); err != nil {
		logger.Log.Warn("emit", zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *Store) setLoading(flag *bool, v bool) {
	s.mu.Lock()
	*flag = v
	s.mu.Unlock()
	s.changed()
}

// mergePersisted reconcile a server copy into entries, caller holds mu.
// Matches by server id first, then by client id of a provisional entry.
func (s *Store) mergePersisted(m domain.Message) {
	for i := range s.entries {
		e := &s.entries[i]
		if e.ServerID == m.ID || (e.Provisional() && m.ClientID != "" && e.LocalID == m.ClientID) {
			local := e.Message
			e.ServerID = m.ID
			e.Message = m
			if local.ID == m.ID {
				e.Message.Join(&local)
			}
			s.sortEntries()
			return
		}
	}

	s.entries = append(s.entries, Entry{LocalID: m.ID, ServerID: m.ID, Message: m})
	s.sortEntries()
}

// sortEntries persisted by seq then createdAt, provisional entries stay at the tail
func (s *Store) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.Provisional() != b.Provisional() {
			return !a.Provisional()
		}
		if a.Provisional() {
			return false
		}
		if a.Message.Seq != b.Message.Seq {
			return a.Message.Seq < b.Message.Seq
		}
		return a.Message.CreatedAt.Before(b.Message.CreatedAt)
	})
}

func (s *Store) removeLocal(localID string) {
	for i := range s.entries {
		if s.entries[i].Provisional() && s.entries[i].LocalID == localID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// touchChat set lastMessage and move the chat to the top, caller holds mu.
// Reports false when the chat is not in the list.
func (s *Store) touchChat(m domain.Message, unread bool) bool {
	i := s.chatIndex(m.ConversationID)
	if i < 0 {
		return false
	}
	v := s.chats[i]
	if v.LastMessage == nil || v.LastMessage.ID == m.ID || v.LastMessage.Seq <= m.Seq {
		last := m
		if v.LastMessage != nil && v.LastMessage.ID == m.ID {
			last.Join(v.LastMessage)
		}
		v.LastMessage = &last
	}
	if unread {
		v.UnreadCount++
	}
	if m.CreatedAt.After(v.UpdatedAt) {
		v.UpdatedAt = m.CreatedAt
	}
	s.chats = append(s.chats[:i], s.chats[i+1:]...)
	s.chats = append([]domain.ConversationView{v}, s.chats...)
	return true
}

func (s *Store) chatIndex(chatID string) int {
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}
