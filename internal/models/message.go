package models

import "time"

const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// Message is the CRM view of one Telegram message.
type Message struct {
	ID          string  `json:"id"`
	MessageID   string  `json:"message_id"`
	ChatID      string  `json:"chat_id"`
	FromMe      bool    `json:"from_me"`
	CreatedAt   *string `json:"created_at"`
	MessageType string  `json:"message_type"`
	TextContent string  `json:"text_content"`
	MediaURL    *string `json:"media_url"`
	IsRead      bool    `json:"is_read"`
	IsDelivered bool    `json:"is_delivered"`
	SenderName  string  `json:"sender_name"`
	IsEdit      bool    `json:"is_edit"`
	IsDeleted   bool    `json:"is_deleted"`
}

// TimeLayout is the ISO-8601 form used for every timestamp on the wire.
// Times are rendered in UTC with an explicit +00:00 offset.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// FormatTime renders t in TimeLayout, or nil for the zero time.
func FormatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(TimeLayout, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
