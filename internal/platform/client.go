// Package platform defines the boundary between the bridge and the
// messaging network. Everything behind Client is an opaque capability; the
// rest of the service only sees the raw value types declared here.
package platform

import (
	"context"
	"errors"
)

var (
	ErrNotConnected = errors.New("telegram client is not connected")
	ErrUnauthorized = errors.New("telegram account is not authorized")
	ErrChatNotFound = errors.New("chat not found")
	ErrPeerNotFound = errors.New("peer not found")
)

// Client is the messaging account the bridge acts as.
//
// SetAuthCode and SetPassword store secrets consumed by the next Connect.
// Disconnect is idempotent.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetAuthCode(code string)
	SetPassword(password string)

	ListConversations(ctx context.Context) ([]Dialog, error)
	// ListMessages returns up to limit most recent messages of a chat in
	// no particular order.
	ListMessages(ctx context.Context, chatID int64, limit int) ([]Message, error)
	SendMessage(ctx context.Context, chatID int64, text string) error

	SenderResolver
}

// SenderResolver looks up the peer behind a sender id.
type SenderResolver interface {
	ResolvePeer(ctx context.Context, id int64) (Peer, error)
}

// SenderResolverFunc adapts a function to SenderResolver.
type SenderResolverFunc func(ctx context.Context, id int64) (Peer, error)

func (f SenderResolverFunc) ResolvePeer(ctx context.Context, id int64) (Peer, error) {
	return f(ctx, id)
}
