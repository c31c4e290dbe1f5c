package app

import (
	"context"

	"realtime_chat_service/internal/chat/domain"
)

// Connection one live transport session of a user
type Connection interface {
	ID() string
	UserID() string
	// Send queue an encoded frame, never blocks
	Send(data []byte) error
}

// PresenceListener notified on 0→1 and 1→0 connection transitions
type PresenceListener interface {
	OnPresenceChange(ctx context.Context, userID string, online bool)
}

// OnlineChecker answers whether a user has at least one live connection
type OnlineChecker interface {
	IsOnline(ctx context.Context, userID string) bool
}

// Notifier pushes an event to every live connection of a user
type Notifier interface {
	Notify(ctx context.Context, userID string, evt domain.Event) error
}
