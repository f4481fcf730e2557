package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/models"
	"github.com/IvanBaradan/Tatargram/internal/normalize"
	"github.com/IvanBaradan/Tatargram/internal/pagination"
	"github.com/IvanBaradan/Tatargram/internal/platform"
)

var (
	ErrClientNotInitialized = errors.New("telegram client not initialized")
	ErrEmptyText            = errors.New("message text cannot be empty")
	ErrInvalidChatID        = errors.New("invalid chat id")
	ErrEmptySecret          = errors.New("value cannot be empty")
)

// MessagePage is one recency-anchored window of a chat history.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	TotalCount int              `json:"totalCount"`
}

type ChatService interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	// ListMessages fetches the limit most recent messages and returns the
	// window selected by offset, counted back from the newest message.
	ListMessages(ctx context.Context, chatID string, offset, limit int) (*MessagePage, error)
	SendMessage(ctx context.Context, chatID, text string) error
	SubmitAuthCode(ctx context.Context, code string) error
	SubmitPassword(ctx context.Context, password string) error
}

type chatService struct {
	client      platform.Client
	accountName string
	logger      *zap.Logger
}

// NewChatService wraps client. A nil client puts every operation into the
// not-initialized failure mode.
func NewChatService(client platform.Client, accountName string, logger *zap.Logger) ChatService {
	return &chatService{client: client, accountName: accountName, logger: logger}
}

func (s *chatService) ListChats(ctx context.Context) ([]models.Chat, error) {
	if s.client == nil {
		return nil, ErrClientNotInitialized
	}

	dialogs, err := s.client.ListConversations(ctx)
	if err != nil {
		s.logger.Error("Failed to list conversations", zap.Error(err))
		return nil, err
	}

	chats := make([]models.Chat, 0, len(dialogs))
	for _, d := range dialogs {
		chats = append(chats, normalize.ChatFromDialog(d, s.accountName))
	}
	return chats, nil
}

func (s *chatService) ListMessages(ctx context.Context, chatID string, offset, limit int) (*MessagePage, error) {
	if s.client == nil {
		return nil, ErrClientNotInitialized
	}
	id, err := ParseChatID(chatID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.ListMessages(ctx, id, limit)
	if err != nil {
		s.logger.Error("Failed to list messages", zap.Int64("chat_id", id), zap.Error(err))
		return nil, err
	}

	msgs := normalize.MessagesFromHistory(ctx, id, raw, s.client)
	window, total := pagination.Paginate(msgs, offset, limit)
	return &MessagePage{Messages: window, TotalCount: total}, nil
}

func (s *chatService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.client == nil {
		return ErrClientNotInitialized
	}
	if text == "" {
		return ErrEmptyText
	}
	id, err := ParseChatID(chatID)
	if err != nil {
		return err
	}

	if err := s.client.SendMessage(ctx, id, text); err != nil {
		s.logger.Error("Failed to send message", zap.Int64("chat_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("Message sent", zap.Int64("chat_id", id))
	return nil
}

// SubmitAuthCode stores the login code and retries the connection.
func (s *chatService) SubmitAuthCode(ctx context.Context, code string) error {
	if s.client == nil {
		return ErrClientNotInitialized
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("code: %w", ErrEmptySecret)
	}
	s.client.SetAuthCode(code)
	return s.reconnect(ctx)
}

// SubmitPassword stores the two-factor password and retries the connection.
func (s *chatService) SubmitPassword(ctx context.Context, password string) error {
	if s.client == nil {
		return ErrClientNotInitialized
	}
	if password == "" {
		return fmt.Errorf("password: %w", ErrEmptySecret)
	}
	s.client.SetPassword(password)
	return s.reconnect(ctx)
}

func (s *chatService) reconnect(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		s.logger.Error("Failed to connect to Telegram", zap.Error(err))
		return err
	}
	return nil
}

// ParseChatID converts a path chat id into the platform id.
func ParseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}
	return id, nil
}
