package telegram

import (
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/IvanBaradan/Tatargram/internal/platform"
)

// entities indexes the users and chats attached to an API response.
type entities struct {
	users    map[int64]*tg.User
	chats    map[int64]*tg.Chat
	channels map[int64]*tg.Channel
	// other holds chats of kinds the bridge does not model.
	other map[int64]tg.ChatClass
}

func newEntities(users []tg.UserClass, chats []tg.ChatClass) *entities {
	e := &entities{
		users:    make(map[int64]*tg.User, len(users)),
		chats:    make(map[int64]*tg.Chat),
		channels: make(map[int64]*tg.Channel),
		other:    make(map[int64]tg.ChatClass),
	}
	for _, u := range users {
		if user, ok := u.AsNotEmpty(); ok {
			e.users[user.ID] = user
		}
	}
	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Chat:
			e.chats[chat.ID] = chat
		case *tg.Channel:
			e.channels[chat.ID] = chat
		case *tg.ChatEmpty:
		default:
			e.other[c.GetID()] = c
		}
	}
	return e
}

// peer returns the platform view of the entity behind p.
func (e *entities) peer(p tg.PeerClass) (platform.Peer, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		if u, ok := e.users[p.UserID]; ok {
			return userPeer(u), true
		}
	case *tg.PeerChat:
		if c, ok := e.chats[p.ChatID]; ok {
			return chatPeer(c), true
		}
		if c, ok := e.other[p.ChatID]; ok {
			return unknownPeer(c), true
		}
	case *tg.PeerChannel:
		if c, ok := e.channels[p.ChannelID]; ok {
			return channelPeer(c), true
		}
		if c, ok := e.other[p.ChannelID]; ok {
			return unknownPeer(c), true
		}
	}
	return platform.Peer{}, false
}

// inputPeer returns the addressable form of the entity behind p.
func (e *entities) inputPeer(p tg.PeerClass) (tg.InputPeerClass, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		if u, ok := e.users[p.UserID]; ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
		}
	case *tg.PeerChat:
		if _, ok := e.chats[p.ChatID]; ok {
			return &tg.InputPeerChat{ChatID: p.ChatID}, true
		}
	case *tg.PeerChannel:
		if c, ok := e.channels[p.ChannelID]; ok {
			return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, true
		}
	}
	return nil, false
}

func userPeer(u *tg.User) platform.Peer {
	p := platform.Peer{
		Kind:      platform.PeerUser,
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
	if u.Photo != nil {
		_, empty := u.Photo.(*tg.UserProfilePhotoEmpty)
		p.HasPhoto = !empty
	}
	return p
}

func chatPeer(c *tg.Chat) platform.Peer {
	return platform.Peer{
		Kind:     platform.PeerGroup,
		ID:       c.ID,
		Title:    c.Title,
		HasPhoto: hasChatPhoto(c.Photo),
	}
}

func channelPeer(c *tg.Channel) platform.Peer {
	return platform.Peer{
		Kind:      platform.PeerChannel,
		ID:        c.ID,
		Title:     c.Title,
		Broadcast: c.Broadcast,
		HasPhoto:  hasChatPhoto(c.Photo),
	}
}

func unknownPeer(c tg.ChatClass) platform.Peer {
	return platform.Peer{
		Kind: platform.PeerUnknown,
		ID:   c.GetID(),
		Raw:  fmt.Sprint(c),
	}
}

func hasChatPhoto(photo tg.ChatPhotoClass) bool {
	if photo == nil {
		return false
	}
	_, empty := photo.(*tg.ChatPhotoEmpty)
	return !empty
}

// peerID extracts the bare numeric id of a peer reference.
func peerID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

// convertMessage maps a history entry. Empty placeholders are skipped.
func convertMessage(m tg.MessageClass) (platform.Message, bool) {
	switch m := m.(type) {
	case *tg.Message:
		out := platform.Message{
			ID:   m.ID,
			Out:  m.Out,
			Date: unixTime(m.Date),
			Text: m.Message,
		}
		if m.Media != nil {
			_, empty := m.Media.(*tg.MessageMediaEmpty)
			out.HasMedia = !empty
		}
		out.SenderID = senderID(m.FromID, m.PeerID, m.Out)
		return out, true
	case *tg.MessageService:
		return platform.Message{
			ID:       m.ID,
			Out:      m.Out,
			Date:     unixTime(m.Date),
			SenderID: senderID(m.FromID, m.PeerID, m.Out),
		}, true
	default:
		return platform.Message{}, false
	}
}

// senderID prefers the explicit author. Incoming private messages carry
// no author, the chat partner is the sender.
func senderID(from, peer tg.PeerClass, out bool) int64 {
	if from != nil {
		return peerID(from)
	}
	if u, ok := peer.(*tg.PeerUser); ok && !out {
		return u.UserID
	}
	return 0
}

func unixTime(ts int) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

type messageKey struct {
	peer int64
	id   int
}

// convertDialogs joins dialogs with their top messages and entities.
// Dialogs whose entity is missing from the response are skipped.
func convertDialogs(dialogs []tg.DialogClass, messages []tg.MessageClass, ents *entities) []platform.Dialog {
	top := make(map[messageKey]tg.MessageClass, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *tg.Message:
			top[messageKey{peer: peerID(msg.PeerID), id: msg.ID}] = m
		case *tg.MessageService:
			top[messageKey{peer: peerID(msg.PeerID), id: msg.ID}] = m
		}
	}

	out := make([]platform.Dialog, 0, len(dialogs))
	for _, d := range dialogs {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		p, ok := ents.peer(dialog.Peer)
		if !ok {
			continue
		}

		item := platform.Dialog{
			Peer:        p,
			UnreadCount: dialog.UnreadCount,
		}
		if raw, ok := top[messageKey{peer: peerID(dialog.Peer), id: dialog.TopMessage}]; ok {
			if m, ok := convertMessage(raw); ok {
				item.TopMessage = &m
			}
		}
		out = append(out, item)
	}
	return out
}
