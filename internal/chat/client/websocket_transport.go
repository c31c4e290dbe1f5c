package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const eventBuffer = 256

// WebsocketTransport Transport over gorilla/websocket, redials after a drop
type WebsocketTransport struct {
	url               string
	header            http.Header
	userID            string
	reconnectInterval time.Duration
	dialer            *websocket.Dialer

	writeMu sync.Mutex
	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan domain.WSResponse

	events    chan domain.WSResponse
	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// DialWebsocket connect to cfg.ServerURL with cfg.Token and assert presence for cfg.UserID
func DialWebsocket(ctx context.Context, cfg config.Client) (*WebsocketTransport, error) {
	cfg.SetDefaults()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	t := &WebsocketTransport{
		url:               cfg.ServerURL,
		header:            header,
		userID:            cfg.UserID,
		reconnectInterval: cfg.ReconnectInterval,
		dialer:            websocket.DefaultDialer,
		pending:           make(map[string]chan domain.WSResponse),
		events:            make(chan domain.WSResponse, eventBuffer),
		closed:            make(chan struct{}),
		done:              make(chan struct{}),
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	go t.run(conn)

	if err := t.Request(ctx, domain.ActionUserOnline, domain.OnlinePayload{UserID: t.userID}, nil); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *WebsocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", t.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return conn, nil
}

// run 讀取直到斷線, 之後固定間隔重連並重新宣告上線
func (t *WebsocketTransport) run(conn *websocket.Conn) {
	defer func() {
		close(t.events)
		close(t.done)
	}()

	for {
		t.readLoop(conn)
		t.failPending()

		select {
		case <-t.closed:
			return
		default:
		}
		logger.Log.Warn("chat connection lost, reconnecting", zap.Duration("interval", t.reconnectInterval))

		conn = t.redial()
		if conn == nil {
			return
		}
		select {
		case <-t.closed:
			conn.Close()
			return
		default:
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := t.Request(ctx, domain.ActionUserOnline, domain.OnlinePayload{UserID: t.userID}, nil); err != nil {
				logger.Log.Warn("re-assert presence", zap.Error(err))
			}
		}()
	}
}

func (t *WebsocketTransport) redial() *websocket.Conn {
	ticker := time.NewTicker(t.reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return nil
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.reconnectInterval)
		conn, err := t.dial(ctx)
		cancel()
		if err == nil {
			logger.Log.Info("chat connection restored")
			return conn
		}
		logger.Log.Debug("redial failed", zap.Error(err))
	}
}

func (t *WebsocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var resp domain.WSResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Log.Warn("malformed server frame", zap.Error(err))
			continue
		}

		if resp.RequestID != "" {
			t.mu.Lock()
			ch, ok := t.pending[resp.RequestID]
			delete(t.pending, resp.RequestID)
			t.mu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}

		select {
		case t.events <- resp:
		case <-t.closed:
			conn.Close()
			return
		}
	}
}

func (t *WebsocketTransport) failPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

func (t *WebsocketTransport) write(req domain.WSRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// Request send action and wait for its ack
func (t *WebsocketTransport) Request(ctx context.Context, action domain.Action, payload, out interface{}) error {
	req, err := domain.NewRequest(uuid.New().String(), action, payload)
	if err != nil {
		return err
	}

	ch := make(chan domain.WSResponse, 1)
	t.mu.Lock()
	t.pending[req.RequestID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.RequestID)
		t.mu.Unlock()
	}()

	if err := t.write(req); err != nil {
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if resp.Status != domain.StatusOK {
			return &RequestError{Action: action, Code: resp.Code, Message: resp.Error}
		}
		if out != nil && len(resp.Payload) > 0 {
			return json.Unmarshal(resp.Payload, out)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return ErrDisconnected
	}
}

// Emit send action without a request id, the server sends no ack
func (t *WebsocketTransport) Emit(_ context.Context, action domain.Action, payload interface{}) error {
	req, err := domain.NewRequest("", action, payload)
	if err != nil {
		return err
	}
	return t.write(req)
}

// Events server pushes
func (t *WebsocketTransport) Events() <-chan domain.WSResponse {
	return t.events
}

// Close stop reconnecting and close the connection
func (t *WebsocketTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		t.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		conn.Close()
	})
	<-t.done
	return nil
}
