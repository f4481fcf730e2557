package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/metrics"
	"github.com/IvanBaradan/Tatargram/internal/normalize"
	"github.com/IvanBaradan/Tatargram/internal/platform"
	"github.com/IvanBaradan/Tatargram/internal/repository"
)

// SyncResult counts what a mirror run wrote.
type SyncResult struct {
	Chats    int `json:"chats"`
	Messages int `json:"messages"`
	Failed   int `json:"failed"`
}

// Mirror copies chats and recent messages into the database.
type Mirror struct {
	client       platform.Client
	chats        repository.ChatRepository
	messages     repository.MessageRepository
	accountName  string
	messageLimit int
	logger       *zap.Logger
}

func NewMirror(
	client platform.Client,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	accountName string,
	messageLimit int,
	logger *zap.Logger,
) *Mirror {
	return &Mirror{
		client:       client,
		chats:        chats,
		messages:     messages,
		accountName:  accountName,
		messageLimit: messageLimit,
		logger:       logger,
	}
}

// Sync upserts every conversation and its most recent messages. Failures
// of single chats or messages are logged and counted, only a failed
// conversation listing aborts the run.
func (m *Mirror) Sync(ctx context.Context) (*SyncResult, error) {
	if m.client == nil {
		return nil, ErrClientNotInitialized
	}

	dialogs, err := m.client.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	for _, d := range dialogs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		chat := normalize.ChatFromDialog(d, m.accountName)
		err := m.chats.UpsertChat(ctx, &chat)
		metrics.RecordMirrored("chat", err)
		if err != nil {
			res.Failed++
			m.logger.Warn("Failed to store chat", zap.String("chat_id", chat.ChatID), zap.Error(err))
			continue
		}
		res.Chats++

		raw, err := m.client.ListMessages(ctx, d.Peer.ID, m.messageLimit)
		if err != nil {
			res.Failed++
			m.logger.Warn("Failed to fetch messages", zap.String("chat_id", chat.ChatID), zap.Error(err))
			continue
		}

		for _, msg := range normalize.MessagesFromHistory(ctx, d.Peer.ID, raw, m.client) {
			err := m.messages.UpsertMessage(ctx, &msg)
			metrics.RecordMirrored("message", err)
			if err != nil {
				res.Failed++
				m.logger.Warn("Failed to store message",
					zap.String("chat_id", chat.ChatID),
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
				continue
			}
			res.Messages++
		}
	}

	m.logger.Info("Mirror sync finished",
		zap.Int("chats", res.Chats),
		zap.Int("messages", res.Messages),
		zap.Int("failed", res.Failed),
		zap.String("account", m.accountName),
		zap.Int("dialogs", len(dialogs)),
	)
	return res, nil
}
