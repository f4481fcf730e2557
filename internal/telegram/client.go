// Package telegram implements platform.Client on top of the gotd MTProto
// client, acting as a regular user account.
package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/config"
	"github.com/IvanBaradan/Tatargram/internal/metrics"
	"github.com/IvanBaradan/Tatargram/internal/platform"
)

const (
	dialogsPageSize = 100
	peerCacheTTL    = 6 * time.Hour
)

var _ platform.Client = (*Client)(nil)

// Client is a single Telegram user session.
type Client struct {
	log *zap.Logger
	cfg config.TelegramConfig

	// guards lifecycle and the pending authorization flow
	mux  sync.Mutex
	stop func() error

	client     atomic.Pointer[telegram.Client]
	connected  atomic.Bool
	authorized atomic.Bool

	code           string
	password       string
	codeHash       string
	passwordNeeded bool

	inputPeers *lru.LRU[int64, tg.InputPeerClass]
	peers      *lru.LRU[int64, platform.Peer]
}

// NewClient creates an adapter for the configured account. No network
// activity happens until Connect.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	size := cfg.PeerCacheSize
	if size <= 0 {
		size = 1024
	}
	return &Client{
		log:        logger,
		cfg:        cfg,
		inputPeers: lru.NewLRU[int64, tg.InputPeerClass](size, nil, peerCacheTTL),
		peers:      lru.NewLRU[int64, platform.Peer](size, nil, peerCacheTTL),
	}
}

// SetAuthCode stores the one-time login code for the next Connect.
func (c *Client) SetAuthCode(code string) {
	c.mux.Lock()
	c.code = strings.TrimSpace(code)
	c.mux.Unlock()
}

// SetPassword stores the two-factor password for the next Connect.
func (c *Client) SetPassword(password string) {
	c.mux.Lock()
	c.password = password
	c.mux.Unlock()
}

// Connected reports whether the session is running.
func (c *Client) Connected() bool { return c.connected.Load() }

// Authorized reports whether the account is signed in.
func (c *Client) Authorized() bool { return c.authorized.Load() }

// Connect starts the session if needed and advances the authorization
// flow as far as the supplied secrets allow. A missing code is not an
// error: the account stays unauthorized until a retry.
func (c *Client) Connect(ctx context.Context) (err error) {
	defer func() { metrics.RecordTelegramCall("connect", err) }()

	c.mux.Lock()
	defer c.mux.Unlock()

	if !c.connected.Load() {
		if err := c.start(ctx); err != nil {
			return errors.Wrap(err, "connect")
		}
	}
	return c.authorize(ctx)
}

// start runs the gotd client in the background until Disconnect.
func (c *Client) start(ctx context.Context) error {
	client := telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		Logger:         c.log.Named("gotd"),
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionFile},
		NoUpdates:      true,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	init := make(chan struct{})
	exit := make(chan error, 1)

	go func() {
		err := client.Run(runCtx, func(ctx context.Context) error {
			close(init)
			<-ctx.Done()
			return nil
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		c.connected.Store(false)
		c.authorized.Store(false)
		metrics.TelegramConnected.Set(0)
		if err != nil {
			c.log.Error("Telegram client stopped", zap.Error(err))
		}
		exit <- err
		close(exit)
	}()

	stop := func() error {
		cancel()
		return <-exit
	}

	select {
	case <-init:
	case err := <-exit:
		cancel()
		if err == nil {
			err = errors.New("client exited during startup")
		}
		return err
	case <-ctx.Done():
		_ = stop()
		return ctx.Err()
	}

	c.stop = stop
	c.client.Store(client)
	c.connected.Store(true)
	metrics.TelegramConnected.Set(1)
	c.log.Info("Telegram client connected")
	return nil
}

// authorize must be called with mux held.
func (c *Client) authorize(ctx context.Context) error {
	client := c.client.Load()
	flow := client.Auth()

	status, err := flow.Status(ctx)
	if err != nil {
		return errors.Wrap(err, "auth status")
	}
	if status.Authorized {
		c.signedIn(status.User)
		return nil
	}
	c.authorized.Store(false)

	if c.passwordNeeded {
		return c.checkPassword(ctx, flow)
	}

	if c.codeHash == "" {
		sent, err := flow.SendCode(ctx, c.cfg.Phone, auth.SendCodeOptions{})
		if err != nil {
			return errors.Wrap(err, "send code")
		}
		code, ok := sent.(*tg.AuthSentCode)
		if !ok {
			return errors.Errorf("unexpected sent code %T", sent)
		}
		c.codeHash = code.PhoneCodeHash
		c.log.Info("Authentication code requested", zap.String("phone", c.cfg.Phone))
	}

	if c.code == "" {
		c.log.Warn("Telegram account is not authorized, waiting for the authentication code")
		return nil
	}

	code := c.code
	c.code = ""
	a, err := flow.SignIn(ctx, c.cfg.Phone, code, c.codeHash)
	switch {
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		c.codeHash = ""
		c.passwordNeeded = true
		return c.checkPassword(ctx, flow)
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		c.codeHash = ""
		return errors.Wrap(platform.ErrUnauthorized, "code expired, a new one will be requested")
	case err != nil:
		return errors.Wrap(err, "sign in")
	}

	c.codeHash = ""
	c.signedIn(a.User)
	return nil
}

func (c *Client) checkPassword(ctx context.Context, flow *auth.Client) error {
	if c.password == "" {
		c.log.Warn("Two-factor password required, waiting for the password")
		return nil
	}

	password := c.password
	c.password = ""
	a, err := flow.Password(ctx, password)
	if err != nil {
		return errors.Wrap(err, "check password")
	}

	c.passwordNeeded = false
	c.signedIn(a.User)
	return nil
}

func (c *Client) signedIn(u tg.UserClass) {
	c.authorized.Store(true)
	if user, ok := u.(*tg.User); ok {
		c.log.Info("Telegram account authorized",
			zap.Int64("user_id", user.ID),
			zap.String("username", user.Username),
		)
	}
}

// Disconnect stops the session. It is safe to call more than once.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.stop == nil {
		return nil
	}
	stop := c.stop
	c.stop = nil

	done := make(chan error, 1)
	go func() { done <- stop() }()

	select {
	case err := <-done:
		c.log.Info("Telegram client disconnected")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Self returns the signed in account.
func (c *Client) Self(ctx context.Context) (*tg.User, error) {
	if _, err := c.api(); err != nil {
		return nil, err
	}
	return c.client.Load().Self(ctx)
}

func (c *Client) api() (*tg.Client, error) {
	if !c.connected.Load() {
		return nil, platform.ErrNotConnected
	}
	if !c.authorized.Load() {
		return nil, platform.ErrUnauthorized
	}
	return c.client.Load().API(), nil
}

// ListConversations returns every dialog of the account.
func (c *Client) ListConversations(ctx context.Context) (_ []platform.Dialog, err error) {
	defer func() { metrics.RecordTelegramCall("list_conversations", err) }()

	api, err := c.api()
	if err != nil {
		return nil, err
	}

	var (
		out     []platform.Dialog
		fetched int
		req     = &tg.MessagesGetDialogsRequest{
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      dialogsPageSize,
		}
	)
	for {
		res, err := api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, "get dialogs")
		}

		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
			ents     *entities
			total    int
		)
		switch r := res.(type) {
		case *tg.MessagesDialogs:
			dialogs, messages = r.Dialogs, r.Messages
			ents = newEntities(r.Users, r.Chats)
			total = len(r.Dialogs)
		case *tg.MessagesDialogsSlice:
			dialogs, messages = r.Dialogs, r.Messages
			ents = newEntities(r.Users, r.Chats)
			total = r.Count
		case *tg.MessagesDialogsNotModified:
			return out, nil
		default:
			return nil, errors.Errorf("unexpected dialogs %T", res)
		}

		c.remember(ents, dialogs)
		out = append(out, convertDialogs(dialogs, messages, ents)...)
		fetched += len(dialogs)

		if _, full := res.(*tg.MessagesDialogs); full || len(dialogs) < dialogsPageSize || fetched >= total {
			break
		}
		if !nextDialogsPage(req, dialogs, messages, ents) {
			break
		}
	}

	if out == nil {
		out = make([]platform.Dialog, 0)
	}
	return out, nil
}

// nextDialogsPage moves req past the last dialog of a page.
func nextDialogsPage(req *tg.MessagesGetDialogsRequest, dialogs []tg.DialogClass, messages []tg.MessageClass, ents *entities) bool {
	for i := len(dialogs) - 1; i >= 0; i-- {
		d, ok := dialogs[i].(*tg.Dialog)
		if !ok {
			continue
		}
		peer, ok := ents.inputPeer(d.Peer)
		if !ok {
			continue
		}
		for _, m := range messages {
			msg, ok := m.(*tg.Message)
			if !ok || msg.ID != d.TopMessage || peerID(msg.PeerID) != peerID(d.Peer) {
				continue
			}
			if req.OffsetID == msg.ID && req.OffsetDate == msg.Date {
				return false
			}
			req.OffsetID = msg.ID
			req.OffsetDate = msg.Date
			req.OffsetPeer = peer
			return true
		}
	}
	return false
}

// remember caches peers and access hashes seen in a response.
func (c *Client) remember(ents *entities, dialogs []tg.DialogClass) {
	for id, u := range ents.users {
		c.peers.Add(id, userPeer(u))
		c.inputPeers.Add(id, &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash})
	}
	for id, ch := range ents.chats {
		c.peers.Add(id, chatPeer(ch))
		c.inputPeers.Add(id, &tg.InputPeerChat{ChatID: ch.ID})
	}
	for id, ch := range ents.channels {
		c.peers.Add(id, channelPeer(ch))
		c.inputPeers.Add(id, &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash})
	}
	// Dialog partners take precedence when ids collide across kinds.
	for _, d := range dialogs {
		if dialog, ok := d.(*tg.Dialog); ok {
			if peer, ok := ents.inputPeer(dialog.Peer); ok {
				c.inputPeers.Add(peerID(dialog.Peer), peer)
			}
		}
	}
}

// inputPeer resolves a chat id, reloading dialogs once on a cache miss.
func (c *Client) inputPeer(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	if peer, ok := c.inputPeers.Get(chatID); ok {
		return peer, nil
	}
	if _, err := c.ListConversations(ctx); err != nil {
		return nil, err
	}
	if peer, ok := c.inputPeers.Get(chatID); ok {
		return peer, nil
	}
	return nil, platform.ErrChatNotFound
}

// ListMessages returns up to limit most recent messages of a chat.
func (c *Client) ListMessages(ctx context.Context, chatID int64, limit int) (_ []platform.Message, err error) {
	defer func() { metrics.RecordTelegramCall("list_messages", err) }()

	api, err := c.api()
	if err != nil {
		return nil, err
	}
	peer, err := c.inputPeer(ctx, chatID)
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "get history")
	}

	var raw []tg.MessageClass
	switch r := res.(type) {
	case *tg.MessagesMessages:
		raw = r.Messages
		c.remember(newEntities(r.Users, r.Chats), nil)
	case *tg.MessagesMessagesSlice:
		raw = r.Messages
		c.remember(newEntities(r.Users, r.Chats), nil)
	case *tg.MessagesChannelMessages:
		raw = r.Messages
		c.remember(newEntities(r.Users, r.Chats), nil)
	case *tg.MessagesMessagesNotModified:
	default:
		return nil, errors.Errorf("unexpected history %T", res)
	}

	out := make([]platform.Message, 0, len(raw))
	for _, m := range raw {
		if msg, ok := convertMessage(m); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// SendMessage sends text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (err error) {
	defer func() { metrics.RecordTelegramCall("send_message", err) }()

	api, err := c.api()
	if err != nil {
		return err
	}
	peer, err := c.inputPeer(ctx, chatID)
	if err != nil {
		return err
	}

	if _, err := message.NewSender(api).To(peer).Text(ctx, text); err != nil {
		c.log.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return errors.Wrap(err, "send message")
	}
	return nil
}

// ResolvePeer looks up a peer already seen in dialogs or history.
func (c *Client) ResolvePeer(_ context.Context, id int64) (platform.Peer, error) {
	if p, ok := c.peers.Get(id); ok {
		return p, nil
	}
	return platform.Peer{}, platform.ErrPeerNotFound
}
