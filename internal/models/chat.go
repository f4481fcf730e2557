package models

// Chat types reported to CRM consumers.
const (
	ChatTypeUser       = "user"
	ChatTypeGroup      = "group"
	ChatTypeChannel    = "channel"
	ChatTypeSupergroup = "supergroup"
	ChatTypeUnknown    = "unknown"
)

// PlatformTelegram tags every record produced by this service.
const PlatformTelegram = "telegram"

// Chat is the CRM view of one Telegram conversation.
type Chat struct {
	ID              string  `json:"id"`
	ChatID          string  `json:"chat_id"`
	UserID          string  `json:"user_id"`
	Platform        string  `json:"platform"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	UnreadCount     int     `json:"unread_count"`
	LastMessage     string  `json:"last_message"`
	LastMessageDate *string `json:"last_message_date"`
	PhotoURL        *string `json:"photo_url"`
	IsVerifiedRead  bool    `json:"is_verified_read"`
	IsNoReplyNeeded bool    `json:"is_no_reply_needed"`
	IsPinned        bool    `json:"is_pinned"`
	AccountName     string  `json:"account_name"`
}
