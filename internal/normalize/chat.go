// Package normalize maps raw platform values into CRM records. It performs
// no I/O apart from the sender lookups callers pass in.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/IvanBaradan/Tatargram/internal/models"
	"github.com/IvanBaradan/Tatargram/internal/platform"
)

// PreviewLength bounds Chat.LastMessage in characters.
const PreviewLength = 100

// ChatFromDialog builds the Chat record for one conversation.
func ChatFromDialog(d platform.Dialog, accountName string) models.Chat {
	id := strconv.FormatInt(d.Peer.ID, 10)

	chat := models.Chat{
		ID:          id,
		ChatID:      id,
		UserID:      id,
		Platform:    models.PlatformTelegram,
		Name:        PeerName(d.Peer),
		Type:        ChatType(d.Peer),
		UnreadCount: d.UnreadCount,
		AccountName: accountName,
	}
	if chat.UnreadCount < 0 {
		chat.UnreadCount = 0
	}

	if d.TopMessage != nil {
		chat.LastMessage = truncate(d.TopMessage.String(), PreviewLength)
		chat.LastMessageDate = models.FormatTime(d.TopMessage.Date)
	}

	if d.Peer.HasPhoto {
		photo := PhotoURL(id)
		chat.PhotoURL = &photo
	}

	return chat
}

// ChatType derives the CRM chat type from the peer kind.
func ChatType(p platform.Peer) string {
	switch p.Kind {
	case platform.PeerUser:
		return models.ChatTypeUser
	case platform.PeerGroup:
		return models.ChatTypeGroup
	case platform.PeerChannel:
		if p.Broadcast {
			return models.ChatTypeChannel
		}
		return models.ChatTypeSupergroup
	default:
		return models.ChatTypeUnknown
	}
}

// PeerName is the best-effort display title of p.
func PeerName(p platform.Peer) string {
	switch p.Kind {
	case platform.PeerUser:
		return UserName(p)
	case platform.PeerGroup, platform.PeerChannel:
		return p.Title
	default:
		return p.Raw
	}
}

// UserName joins first and last name, then falls back to the username and
// finally to a "User {id}" placeholder.
func UserName(p platform.Peer) string {
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return Placeholder(p.ID)
}

// Placeholder is the display name of a peer with no usable name.
func Placeholder(id int64) string {
	return fmt.Sprintf("User %d", id)
}

// PhotoURL is the avatar stub for a chat. Images are not served.
func PhotoURL(chatID string) string {
	return "/api/chats/" + chatID + "/photo"
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
