package domain

import (
	"encoding/json"
	"time"
)

// Action websocket event name
type Action string

const (
	// ActionUserOnline client asserts presence after (re)connect
	ActionUserOnline Action = "user:online"

	// ActionSendMessage client sends a message
	ActionSendMessage Action = "message:send"
	// ActionMessageReceived server pushes a new message to the recipient
	ActionMessageReceived Action = "message:received"
	// ActionMessageDelivered recipient ack, then server push to the sender
	ActionMessageDelivered Action = "message:delivered"

	// ActionMarkRead client opened a conversation
	ActionMarkRead Action = "chat:markRead"
	// ActionMessagesRead server pushes a read receipt to the sender
	ActionMessagesRead Action = "chat:messagesRead"

	// ActionTypingStart client started typing
	ActionTypingStart Action = "typing:start"
	// ActionTypingStop client stopped typing
	ActionTypingStop Action = "typing:stop"
	// ActionTypingStatus server relays typing state to the peer
	ActionTypingStatus Action = "typing:status"

	// ActionPresenceChanged server pushes counterpart presence
	ActionPresenceChanged Action = "presence:changed"

	// ActionListChats list conversations of the caller
	ActionListChats Action = "chat:list"
	// ActionListMessages history of one conversation
	ActionListMessages Action = "chat:messages"
	// ActionCreateDirect find or create a direct conversation
	ActionCreateDirect Action = "chat:createDirect"
	// ActionDeleteChat delete a conversation and its messages
	ActionDeleteChat Action = "chat:delete"

	// ActionError unparseable request
	ActionError Action = "error"
)

// Response status
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WSRequest websocket request frame
type WSRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	Action    Action          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// WSResponse websocket response / push frame. Push frames have no request_id.
type WSResponse struct {
	RequestID string          `json:"request_id,omitempty"`
	Action    Action          `json:"action"`
	Status    string          `json:"status"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewRequest build a request frame
func NewRequest(requestID string, action Action, payload interface{}) (WSRequest, error) {
	req := WSRequest{RequestID: requestID, Action: action}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return req, err
		}
		req.Payload = b
	}
	return req, nil
}

// OKResponse build a success frame
func OKResponse(requestID string, action Action, payload interface{}) (WSResponse, error) {
	resp := WSResponse{RequestID: requestID, Action: action, Status: StatusOK}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return resp, err
		}
		resp.Payload = b
	}
	return resp, nil
}

// ErrorResponse build a failure frame from err
func ErrorResponse(requestID string, action Action, err error) WSResponse {
	return WSResponse{
		RequestID: requestID,
		Action:    action,
		Status:    StatusError,
		Code:      ErrorCode(err),
		Error:     err.Error(),
	}
}

// Event unsolicited server push
type Event struct {
	Action  Action      `json:"action"`
	Payload interface{} `json:"payload"`
}

// Encode event as a push frame
func (e Event) Encode() ([]byte, error) {
	resp, err := OKResponse("", e.Action, e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// OnlinePayload user:online
type OnlinePayload struct {
	UserID string `json:"userId"`
}

// SendMessagePayload message:send
type SendMessagePayload struct {
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	ReceiverID     string       `json:"receiverId"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ClientID       string       `json:"clientId,omitempty"`
}

// DeliveredAckPayload message:delivered client→server
type DeliveredAckPayload struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
}

// DeliveredPushPayload message:delivered server→sender
type DeliveredPushPayload struct {
	MessageID   string    `json:"messageId"`
	ChatID      string    `json:"chatId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// MarkReadPayload chat:markRead
type MarkReadPayload struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
}

// MarkReadResult chat:markRead ack
type MarkReadResult struct {
	Count int64 `json:"count"`
}

// MessagesReadPayload chat:messagesRead
type MessagesReadPayload struct {
	ChatID   string    `json:"chatId"`
	ReaderID string    `json:"readerId,omitempty"`
	ReadAt   time.Time `json:"readAt"`
}

// TypingPayload typing:start / typing:stop
type TypingPayload struct {
	ChatID     string `json:"chatId"`
	UserID     string `json:"userId"`
	ReceiverID string `json:"receiverId"`
}

// TypingStatusPayload typing:status
type TypingStatusPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// PresencePayload presence:changed
type PresencePayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// ListMessagesPayload chat:messages
type ListMessagesPayload struct {
	ChatID string `json:"chatId"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// CreateDirectPayload chat:createDirect
type CreateDirectPayload struct {
	OtherUserID string `json:"otherUserId"`
}

// DeleteChatPayload chat:delete
type DeleteChatPayload struct {
	ChatID string `json:"chatId"`
}
