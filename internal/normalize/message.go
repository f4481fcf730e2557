package normalize

import (
	"context"
	"sort"
	"strconv"

	"github.com/IvanBaradan/Tatargram/internal/models"
	"github.com/IvanBaradan/Tatargram/internal/platform"
)

// SelfName is the sender name of messages written by the bridged account.
const SelfName = "You"

// MessagesFromHistory maps a raw history batch, drops messages without
// text and returns the rest oldest first. Sender lookup failures are
// absorbed into the "User {id}" placeholder.
func MessagesFromHistory(ctx context.Context, chatID int64, raw []platform.Message, resolver platform.SenderResolver) []models.Message {
	chat := strconv.FormatInt(chatID, 10)
	names := make(map[int64]string)

	out := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		if m.Text == "" {
			continue
		}
		out = append(out, messageRecord(chat, m, senderName(ctx, m, resolver, names)))
	}

	SortOldestFirst(out)
	return out
}

// MessageFromRaw maps one message. ok is false when the message has no text.
func MessageFromRaw(ctx context.Context, chatID int64, m platform.Message, resolver platform.SenderResolver) (models.Message, bool) {
	if m.Text == "" {
		return models.Message{}, false
	}
	return messageRecord(strconv.FormatInt(chatID, 10), m, senderName(ctx, m, resolver, nil)), true
}

// SortOldestFirst orders messages by created_at ascending, null first.
// Equal timestamps keep their input order.
func SortOldestFirst(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return sortKey(msgs[i].CreatedAt) < sortKey(msgs[j].CreatedAt)
	})
}

func sortKey(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func messageRecord(chatID string, m platform.Message, sender string) models.Message {
	id := strconv.Itoa(m.ID)

	kind := models.MessageTypeText
	if m.HasMedia {
		kind = models.MessageTypeMedia
	}

	return models.Message{
		ID:          id,
		MessageID:   id,
		ChatID:      chatID,
		FromMe:      m.Out,
		CreatedAt:   models.FormatTime(m.Date),
		MessageType: kind,
		TextContent: m.Text,
		IsRead:      true,
		IsDelivered: true,
		SenderName:  sender,
	}
}

func senderName(ctx context.Context, m platform.Message, resolver platform.SenderResolver, cache map[int64]string) string {
	if m.Out {
		return SelfName
	}
	if m.SenderID == 0 {
		return ""
	}
	if name, ok := cache[m.SenderID]; ok {
		return name
	}

	name := Placeholder(m.SenderID)
	if resolver != nil {
		if p, err := resolver.ResolvePeer(ctx, m.SenderID); err == nil {
			if resolved := PeerName(p); resolved != "" {
				name = resolved
			}
		}
	}

	if cache != nil {
		cache[m.SenderID] = name
	}
	return name
}
