package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/models"
)

type ChatRepository interface {
	// CreateChat inserts a new row and fails with ErrDuplicate when the
	// chat id is already stored.
	CreateChat(ctx context.Context, chat *models.Chat) error
	UpsertChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
}

type chatRow struct {
	ID              int64      `db:"id"`
	ChatID          string     `db:"chat_id"`
	UserID          string     `db:"user_id"`
	Platform        string     `db:"platform"`
	Name            string     `db:"name"`
	ChatType        string     `db:"chat_type"`
	UnreadCount     int        `db:"unread_count"`
	LastMessage     string     `db:"last_message"`
	LastMessageDate *time.Time `db:"last_message_date"`
	PhotoURL        *string    `db:"photo_url"`
	IsVerifiedRead  bool       `db:"is_verified_read"`
	IsNoReplyNeeded bool       `db:"is_no_reply_needed"`
	IsPinned        bool       `db:"is_pinned"`
	AccountName     string     `db:"account_name"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func newChatRow(c *models.Chat) (*chatRow, error) {
	date, err := models.ParseTime(c.LastMessageDate)
	if err != nil {
		return nil, fmt.Errorf("invalid last_message_date: %w", err)
	}
	return &chatRow{
		ChatID:          c.ChatID,
		UserID:          c.UserID,
		Platform:        c.Platform,
		Name:            c.Name,
		ChatType:        c.Type,
		UnreadCount:     c.UnreadCount,
		LastMessage:     c.LastMessage,
		LastMessageDate: date,
		PhotoURL:        c.PhotoURL,
		IsVerifiedRead:  c.IsVerifiedRead,
		IsNoReplyNeeded: c.IsNoReplyNeeded,
		IsPinned:        c.IsPinned,
		AccountName:     c.AccountName,
	}, nil
}

func (r *chatRow) model() models.Chat {
	c := models.Chat{
		ID:              r.ChatID,
		ChatID:          r.ChatID,
		UserID:          r.UserID,
		Platform:        r.Platform,
		Name:            r.Name,
		Type:            r.ChatType,
		UnreadCount:     r.UnreadCount,
		LastMessage:     r.LastMessage,
		PhotoURL:        r.PhotoURL,
		IsVerifiedRead:  r.IsVerifiedRead,
		IsNoReplyNeeded: r.IsNoReplyNeeded,
		IsPinned:        r.IsPinned,
		AccountName:     r.AccountName,
	}
	if r.LastMessageDate != nil {
		c.LastMessageDate = models.FormatTime(*r.LastMessageDate)
	}
	return c
}

const chatColumns = `id, chat_id, user_id, platform, name, chat_type, unread_count, last_message,
	last_message_date, photo_url, is_verified_read, is_no_reply_needed, is_pinned, account_name,
	created_at, updated_at`

const insertChat = `INSERT INTO telegram_chats (chat_id, user_id, platform, name, chat_type, unread_count,
		last_message, last_message_date, photo_url, is_verified_read, is_no_reply_needed, is_pinned, account_name)
	VALUES (:chat_id, :user_id, :platform, :name, :chat_type, :unread_count,
		:last_message, :last_message_date, :photo_url, :is_verified_read, :is_no_reply_needed, :is_pinned, :account_name)`

type chatRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChatRepository(db *sqlx.DB, logger *zap.Logger) ChatRepository {
	return &chatRepository{db: db, logger: logger}
}

func (r *chatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	row, err := newChatRow(chat)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertChat, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("chat %s: %w", chat.ChatID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

// UpsertChat refreshes the platform-derived columns of an existing chat.
// CRM flags set on the stored row are left untouched.
func (r *chatRepository) UpsertChat(ctx context.Context, chat *models.Chat) error {
	row, err := newChatRow(chat)
	if err != nil {
		return err
	}
	query := insertChat + `
	ON CONFLICT (chat_id) DO UPDATE SET
		user_id = excluded.user_id,
		platform = excluded.platform,
		name = excluded.name,
		chat_type = excluded.chat_type,
		unread_count = excluded.unread_count,
		last_message = excluded.last_message,
		last_message_date = excluded.last_message_date,
		photo_url = excluded.photo_url,
		account_name = excluded.account_name,
		updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}
	return nil
}

func (r *chatRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var row chatRow
	query := r.db.Rebind(`SELECT ` + chatColumns + ` FROM telegram_chats WHERE chat_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	chat := row.model()
	return &chat, nil
}

// ListChats returns stored chats, most recently active first.
func (r *chatRepository) ListChats(ctx context.Context) ([]models.Chat, error) {
	var rows []chatRow
	query := `SELECT ` + chatColumns + ` FROM telegram_chats
		ORDER BY last_message_date IS NULL, last_message_date DESC, id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	chats := make([]models.Chat, 0, len(rows))
	for i := range rows {
		chats = append(chats, rows[i].model())
	}
	return chats, nil
}
