package app

import (
	"context"
	"sync"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Registry 線上連線註冊表
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]Connection
	byUser    map[string]map[string]Connection
	presence  repository.PresenceStore
	listeners []PresenceListener
}

// NewRegistry presence may be nil, then only local connections count
func NewRegistry(presence repository.PresenceStore) *Registry {
	return &Registry{
		byID:     make(map[string]Connection),
		byUser:   make(map[string]map[string]Connection),
		presence: presence,
	}
}

// AddListener register a presence listener, call before serving
func (r *Registry) AddListener(l PresenceListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Register add conn, registering the same handle twice is a no-op
func (r *Registry) Register(ctx context.Context, conn Connection) {
	r.mu.Lock()
	if _, ok := r.byID[conn.ID()]; ok {
		r.mu.Unlock()
		return
	}
	r.byID[conn.ID()] = conn
	conns, ok := r.byUser[conn.UserID()]
	if !ok {
		conns = make(map[string]Connection)
		r.byUser[conn.UserID()] = conns
	}
	conns[conn.ID()] = conn
	firstLocal := len(conns) == 1
	listeners := r.listeners
	r.mu.Unlock()

	becameOnline := firstLocal
	if r.presence != nil {
		n, err := r.presence.Incr(ctx, conn.UserID())
		if err != nil {
			logger.Log.Error("presence incr", zap.String("userID", conn.UserID()), zap.Error(err))
		} else {
			becameOnline = n == 1
		}
	}

	logger.Log.Debug("connection registered", zap.String("userID", conn.UserID()), zap.String("connID", conn.ID()))
	if becameOnline {
		r.fire(ctx, listeners, conn.UserID(), true)
	}
}

// Unregister remove a handle, unknown handles are ignored
func (r *Registry) Unregister(ctx context.Context, connID string) {
	r.mu.Lock()
	conn, ok := r.byID[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, connID)
	userID := conn.UserID()
	conns := r.byUser[userID]
	delete(conns, connID)
	lastLocal := len(conns) == 0
	if lastLocal {
		delete(r.byUser, userID)
	}
	listeners := r.listeners
	r.mu.Unlock()

	becameOffline := lastLocal
	if r.presence != nil {
		n, err := r.presence.Decr(ctx, userID)
		if err != nil {
			logger.Log.Error("presence decr", zap.String("userID", userID), zap.Error(err))
		} else {
			becameOffline = n == 0
		}
	}

	logger.Log.Debug("connection unregistered", zap.String("userID", userID), zap.String("connID", connID))
	if becameOffline {
		r.fire(ctx, listeners, userID, false)
	}
}

func (r *Registry) fire(ctx context.Context, listeners []PresenceListener, userID string, online bool) {
	for _, l := range listeners {
		l.OnPresenceChange(ctx, userID, online)
	}
}

// IsOnline true iff the user has a live connection on this or any other node
func (r *Registry) IsOnline(ctx context.Context, userID string) bool {
	r.mu.RLock()
	local := len(r.byUser[userID]) > 0
	r.mu.RUnlock()
	if local || r.presence == nil {
		return local
	}

	n, err := r.presence.Count(ctx, userID)
	if err != nil {
		logger.Log.Warn("presence count", zap.String("userID", userID), zap.Error(err))
		return false
	}
	return n > 0
}

// ConnectionsFor local connections of a user
func (r *Registry) ConnectionsFor(userID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// Notify write evt to every local connection of userID, one failing connection does not stop the rest
func (r *Registry) Notify(_ context.Context, userID string, evt domain.Event) error {
	data, err := evt.Encode()
	if err != nil {
		return err
	}
	r.Deliver(userID, data)
	return nil
}

// Deliver write an encoded frame to every local connection of userID
func (r *Registry) Deliver(userID string, data []byte) {
	for _, c := range r.ConnectionsFor(userID) {
		if err := c.Send(data); err != nil {
			logger.Log.Warn("push failed", zap.String("userID", userID), zap.String("connID", c.ID()), zap.Error(err))
		}
	}
}

// PubSubNotifier publish events on the user channel so every node delivers to its own connections
type PubSubNotifier struct {
	pubsub repository.PubSub
}

// NewPubSubNotifier create PubSubNotifier
func NewPubSubNotifier(pubsub repository.PubSub) *PubSubNotifier {
	return &PubSubNotifier{pubsub: pubsub}
}

// Notify publish evt to chat:user:<userID>
func (n *PubSubNotifier) Notify(ctx context.Context, userID string, evt domain.Event) error {
	data, err := evt.Encode()
	if err != nil {
		return err
	}
	return n.pubsub.Publish(ctx, repository.UserChannel(userID), data)
}
