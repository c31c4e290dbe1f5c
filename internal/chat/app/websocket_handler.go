package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/config"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errConnClosed      = errors.New("connection closed")
	errSendBufferFull  = errors.New("send buffer full")
	errUnauthenticated = errors.New("unauthenticated connection")
	errInternal        = errors.New("internal error")
)

// wsConnection 單一 websocket 連線, 所有寫入都經過 writeLoop
type wsConnection struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConnection(conn *websocket.Conn, userID string, buffer int) *wsConnection {
	return &wsConnection{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConnection) ID() string     { return c.id }
func (c *wsConnection) UserID() string { return c.userID }

// Send never blocks, a client that cannot keep up is disconnected
func (c *wsConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		logger.Log.Warn("send buffer full, closing", zap.String("userID", c.userID), zap.String("connID", c.id))
		c.close()
		return errSendBufferFull
	}
}

func (c *wsConnection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writeLoop 唯一的寫入 goroutine, 包含定期 ping
func (c *wsConnection) writeLoop(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// 讓 read loop 的 ReadMessage 返回
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Warn("websocket write", zap.String("connID", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Log.Warn("websocket ping", zap.String("connID", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// ChatWebsocketHandler websocket 入口, 將 action 分派到各 use case
type ChatWebsocketHandler struct {
	registry       *Registry
	messageUC      *MessageUseCase
	conversationUC *ConversationUseCase
	typing         *TypingRelay
	// pubsub nil 表示單節點, 推播直接走 registry
	pubsub repository.PubSub
	cfg    config.RealtimeConfig
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	registry *Registry,
	messageUC *MessageUseCase,
	conversationUC *ConversationUseCase,
	typing *TypingRelay,
	pubsub repository.PubSub,
	cfg config.RealtimeConfig,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry:       registry,
		messageUC:      messageUC,
		conversationUC: conversationUC,
		typing:         typing,
		pubsub:         pubsub,
		cfg:            cfg,
	}
}

// HandleConnection 是 WebSocket 連線的進入點, 返回時連線已註銷
func (h *ChatWebsocketHandler) HandleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	if userID == "" {
		logger.Log.Error("websocket rejected", zap.Error(errUnauthenticated))
		conn.Close()
		return
	}

	c := newWSConnection(conn, userID, h.cfg.SendBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(h.cfg.PingPeriod, h.cfg.WriteWait)
	}()

	defer func() {
		// ctx 已取消, 註銷用新的 context 才能更新 presence
		cancel()
		h.registry.Unregister(context.Background(), c.ID())
		c.close()
		<-writerDone
		logger.Log.Info("websocket close", zap.String("userID", userID), zap.String("connID", c.ID()))
	}()

	if h.pubsub != nil {
		err := h.pubsub.Subscribe(ctx, repository.UserChannel(userID), func(data []byte) {
			if err := c.Send(data); err != nil {
				logger.Log.Debug("pubsub deliver", zap.String("connID", c.ID()), zap.Error(err))
			}
		})
		if err != nil {
			logger.Log.Error("subscribe user channel", zap.String("userID", userID), zap.Error(err))
			return
		}
	}

	pongWait := 2 * h.cfg.PingPeriod
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.registry.Register(ctx, c)
	logger.Log.Info("websocket open", zap.String("userID", userID), zap.String("connID", c.ID()))

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Log.Warn("websocket read", zap.String("userID", userID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			err := errprocess.Wrap(domain.ErrValidation, "unsupported frame type %d", mt)
			logRequestError("websocket frame", err, zap.String("userID", userID))
			h.reply(c, domain.ErrorResponse("", domain.ActionError, err))
			continue
		}
		h.handleFrame(ctx, c, message)
	}
}

func (h *ChatWebsocketHandler) handleFrame(ctx context.Context, c *wsConnection, message []byte) {
	var req domain.WSRequest
	// websocket handler 不經過 fiber recover
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("websocket action panic", zap.String("userID", c.userID),
				zap.String("action", string(req.Action)), zap.Any("panic", r), zap.Stack("stack"))
			if req.RequestID != "" {
				h.reply(c, domain.ErrorResponse(req.RequestID, req.Action, errInternal))
			}
		}
	}()
	if err := json.Unmarshal(message, &req); err != nil {
		err = errprocess.Wrap(domain.ErrValidation, "malformed frame: %v", err)
		logRequestError("websocket frame", err, zap.String("userID", c.userID))
		h.reply(c, domain.ErrorResponse("", domain.ActionError, err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	result, err := h.dispatch(reqCtx, c, req)
	if err != nil {
		logRequestError("websocket action", err, zap.String("userID", c.userID), zap.String("action", string(req.Action)))
	}
	if req.RequestID == "" {
		return
	}

	if err != nil {
		h.reply(c, domain.ErrorResponse(req.RequestID, req.Action, err))
		return
	}
	resp, err := domain.OKResponse(req.RequestID, req.Action, result)
	if err != nil {
		h.reply(c, domain.ErrorResponse(req.RequestID, req.Action, err))
		return
	}
	h.reply(c, resp)
}

// logRequestError 用戶端錯誤 (validation / forbidden / not found) 記 Debug, 其餘記 Error
func logRequestError(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.ErrorCode(err) == domain.CodeInternal {
		logger.Log.Error(msg, fields...)
		return
	}
	logger.Log.Debug(msg, fields...)
}

func (h *ChatWebsocketHandler) dispatch(ctx context.Context, c *wsConnection, req domain.WSRequest) (interface{}, error) {
	userID := c.userID

	switch req.Action {
	case domain.ActionUserOnline:
		var p domain.OnlinePayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if err := sameUser(userID, p.UserID); err != nil {
			return nil, err
		}
		h.registry.Register(ctx, c)
		return nil, nil

	case domain.ActionSendMessage:
		var p domain.SendMessagePayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if err := sameUser(userID, p.SenderID); err != nil {
			return nil, err
		}
		return h.messageUC.Send(ctx, SendInput{
			ConversationID: p.ConversationID,
			SenderID:       userID,
			ReceiverID:     p.ReceiverID,
			Content:        p.Content,
			Attachments:    p.Attachments,
			ClientID:       p.ClientID,
		})

	case domain.ActionMessageDelivered:
		var p domain.DeliveredAckPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		msg, err := h.messageUC.MarkDelivered(ctx, userID, p.MessageID)
		if err != nil {
			return nil, err
		}
		return domain.DeliveredPushPayload{MessageID: msg.ID, ChatID: msg.ConversationID, DeliveredAt: *msg.DeliveredAt}, nil

	case domain.ActionMarkRead:
		var p domain.MarkReadPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if err := sameUser(userID, p.UserID); err != nil {
			return nil, err
		}
		count, err := h.messageUC.MarkRead(ctx, p.ChatID, userID)
		if err != nil {
			return nil, err
		}
		return domain.MarkReadResult{Count: count}, nil

	case domain.ActionTypingStart, domain.ActionTypingStop:
		var p domain.TypingPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if err := sameUser(userID, p.UserID); err != nil {
			return nil, err
		}
		if req.Action == domain.ActionTypingStart {
			return nil, h.typing.Start(ctx, userID, p.ChatID, p.ReceiverID)
		}
		return nil, h.typing.Stop(ctx, userID, p.ChatID, p.ReceiverID)

	case domain.ActionListChats:
		return h.conversationUC.List(ctx, userID)

	case domain.ActionListMessages:
		var p domain.ListMessagesPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return h.messageUC.History(ctx, userID, p.ChatID, p.Page, p.Limit)

	case domain.ActionCreateDirect:
		var p domain.CreateDirectPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		return h.conversationUC.CreateDirect(ctx, userID, p.OtherUserID)

	case domain.ActionDeleteChat:
		var p domain.DeleteChatPayload
		if err := decode(req, &p); err != nil {
			return nil, err
		}
		if err := h.conversationUC.Delete(ctx, userID, p.ChatID); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, errprocess.Wrap(domain.ErrValidation, "unknown action %q", req.Action)
	}
}

func (h *ChatWebsocketHandler) reply(c *wsConnection, resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("encode response", zap.String("action", string(resp.Action)), zap.Error(err))
		return
	}
	if err := c.Send(b); err != nil {
		logger.Log.Debug("reply dropped", zap.String("connID", c.id), zap.Error(err))
	}
}

func decode(req domain.WSRequest, out interface{}) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, out); err != nil {
		return errprocess.Wrap(domain.ErrValidation, "decode %s payload: %v", req.Action, err)
	}
	return nil
}

// sameUser the identity always comes from the token, a payload may only repeat it
func sameUser(tokenUserID, claimed string) error {
	if claimed != "" && claimed != tokenUserID {
		return errprocess.Wrap(domain.ErrForbidden, "payload user %s does not match connection user %s", claimed, tokenUserID)
	}
	return nil
}
