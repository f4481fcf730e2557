// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"sync"

	"github.com/IvanBaradan/Tatargram/internal/platform"
)

// Sent is a message recorded by Client.SendMessage.
type Sent struct {
	ChatID int64
	Text   string
}

// Client is a scripted platform.Client. Zero value is ready to use.
type Client struct {
	mu sync.Mutex

	Dialogs  []platform.Dialog
	Messages map[int64][]platform.Message
	Peers    map[int64]platform.Peer

	// IgnoreLimit makes ListMessages return the whole scripted history.
	IgnoreLimit bool

	// Err, when set, is returned by every data operation.
	Err        error
	ConnectErr error
	SendErr    error

	Code      string
	Password  string
	Connects  int
	Sent      []Sent
	Limits    []int
	Resolves  int
	Connected bool
}

var _ platform.Client = (*Client)(nil)

func (c *Client) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connects++
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.Connected = true
	return nil
}

func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	c.Connected = false
	c.mu.Unlock()
	return nil
}

func (c *Client) SetAuthCode(code string) {
	c.mu.Lock()
	c.Code = code
	c.mu.Unlock()
}

func (c *Client) SetPassword(password string) {
	c.mu.Lock()
	c.Password = password
	c.mu.Unlock()
}

func (c *Client) ListConversations(context.Context) ([]platform.Dialog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return append([]platform.Dialog(nil), c.Dialogs...), nil
}

// ListMessages returns the newest limit messages, keeping the scripted order.
func (c *Client) ListMessages(_ context.Context, chatID int64, limit int) ([]platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Limits = append(c.Limits, limit)
	if c.Err != nil {
		return nil, c.Err
	}
	msgs, ok := c.Messages[chatID]
	if !ok {
		return nil, platform.ErrChatNotFound
	}
	if !c.IgnoreLimit && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]platform.Message(nil), msgs...), nil
}

func (c *Client) SendMessage(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, Sent{ChatID: chatID, Text: text})
	return nil
}

func (c *Client) ResolvePeer(_ context.Context, id int64) (platform.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resolves++
	p, ok := c.Peers[id]
	if !ok {
		return platform.Peer{}, platform.ErrPeerNotFound
	}
	return p, nil
}

// SentCount is safe to call concurrently with the client.
func (c *Client) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}
