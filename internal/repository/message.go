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

type MessageRepository interface {
	// CreateMessage inserts a new row and fails with ErrDuplicate when the
	// message id is already stored.
	CreateMessage(ctx context.Context, msg *models.Message) error
	UpsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	// ListMessages returns up to limit most recent messages of a chat,
	// oldest first.
	ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
}

type messageRow struct {
	ID          int64      `db:"id"`
	MessageID   string     `db:"message_id"`
	ChatID      string     `db:"chat_id"`
	FromMe      bool       `db:"from_me"`
	CreatedAt   *time.Time `db:"created_at"`
	MessageType string     `db:"message_type"`
	TextContent string     `db:"text_content"`
	MediaURL    *string    `db:"media_url"`
	IsRead      bool       `db:"is_read"`
	IsDelivered bool       `db:"is_delivered"`
	SenderName  string     `db:"sender_name"`
	IsEdit      bool       `db:"is_edit"`
	IsDeleted   bool       `db:"is_deleted"`
	StoredAt    time.Time  `db:"stored_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func newMessageRow(m *models.Message) (*messageRow, error) {
	created, err := models.ParseTime(m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	return &messageRow{
		MessageID:   m.MessageID,
		ChatID:      m.ChatID,
		FromMe:      m.FromMe,
		CreatedAt:   created,
		MessageType: m.MessageType,
		TextContent: m.TextContent,
		MediaURL:    m.MediaURL,
		IsRead:      m.IsRead,
		IsDelivered: m.IsDelivered,
		SenderName:  m.SenderName,
		IsEdit:      m.IsEdit,
		IsDeleted:   m.IsDeleted,
	}, nil
}

func (r *messageRow) model() models.Message {
	m := models.Message{
		ID:          r.MessageID,
		MessageID:   r.MessageID,
		ChatID:      r.ChatID,
		FromMe:      r.FromMe,
		MessageType: r.MessageType,
		TextContent: r.TextContent,
		MediaURL:    r.MediaURL,
		IsRead:      r.IsRead,
		IsDelivered: r.IsDelivered,
		SenderName:  r.SenderName,
		IsEdit:      r.IsEdit,
		IsDeleted:   r.IsDeleted,
	}
	if r.CreatedAt != nil {
		m.CreatedAt = models.FormatTime(*r.CreatedAt)
	}
	return m
}

const messageColumns = `id, message_id, chat_id, from_me, created_at, message_type, text_content, media_url,
	is_read, is_delivered, sender_name, is_edit, is_deleted, stored_at, updated_at`

const insertMessage = `INSERT INTO telegram_messages (message_id, chat_id, from_me, created_at, message_type,
		text_content, media_url, is_read, is_delivered, sender_name, is_edit, is_deleted)
	VALUES (:message_id, :chat_id, :from_me, :created_at, :message_type,
		:text_content, :media_url, :is_read, :is_delivered, :sender_name, :is_edit, :is_deleted)`

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	row, err := newMessageRow(msg)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertMessage, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", msg.MessageID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) UpsertMessage(ctx context.Context, msg *models.Message) error {
	row, err := newMessageRow(msg)
	if err != nil {
		return err
	}
	query := insertMessage + `
	ON CONFLICT (message_id) DO UPDATE SET
		from_me = excluded.from_me,
		created_at = excluded.created_at,
		message_type = excluded.message_type,
		text_content = excluded.text_content,
		sender_name = excluded.sender_name,
		updated_at = CURRENT_TIMESTAMP
	WHERE telegram_messages.chat_id = excluded.chat_id`
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	// a stored message of another chat holds this id
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s of chat %s: %w", msg.MessageID, msg.ChatID, ErrDuplicate)
	}
	return nil
}

func (r *messageRepository) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var row messageRow
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM telegram_messages WHERE message_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg := row.model()
	return &msg, nil
}

func (r *messageRepository) ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	var rows []messageRow
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM telegram_messages
		WHERE chat_id = ?
		ORDER BY created_at IS NULL, created_at DESC, id DESC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, chatID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]models.Message, len(rows))
	for i := range rows {
		msgs[len(rows)-1-i] = rows[i].model()
	}
	return msgs, nil
}
