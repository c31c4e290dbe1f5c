package client

import (
	"context"
	"errors"
	"fmt"

	"realtime_chat_service/internal/chat/domain"
)

// ErrDisconnected the connection dropped before the server answered
var ErrDisconnected = errors.New("chat client: disconnected")

// Transport request/response calls plus a stream of server pushes
type Transport interface {
	// Request send action and wait for its ack, out receives the ack payload
	Request(ctx context.Context, action domain.Action, payload, out interface{}) error
	// Emit send action without waiting for an ack
	Emit(ctx context.Context, action domain.Action, payload interface{}) error
	// Events server pushes, closed when the transport is closed
	Events() <-chan domain.WSResponse
}

// RequestError error ack returned by the server
type RequestError struct {
	Action  domain.Action
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Unwrap map the wire code back to domain.ErrForbidden / ErrNotFound / ErrValidation
func (e *RequestError) Unwrap() error {
	return domain.ErrorFromCode(e.Code)
}
