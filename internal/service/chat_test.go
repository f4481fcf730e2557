package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/platform"
	"github.com/IvanBaradan/Tatargram/internal/platform/platformtest"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

func history(n int) []platform.Message {
	msgs := make([]platform.Message, n)
	for i := range msgs {
		msgs[i] = platform.Message{ID: i + 1, Date: at(i), Text: "m", SenderID: 5}
	}
	return msgs
}

func ids(page *MessagePage) []string {
	out := make([]string, 0, len(page.Messages))
	for _, m := range page.Messages {
		out = append(out, m.ID)
	}
	return out
}

func TestListMessagesSortsUnorderedBatch(t *testing.T) {
	fake := &platformtest.Client{Messages: map[int64][]platform.Message{
		7: {
			{ID: 3, Date: at(3), Text: "t3"},
			{ID: 1, Date: at(1), Text: "t1"},
			{ID: 2, Date: at(2), Text: "t2"},
		},
	}}
	svc := NewChatService(fake, "Telegram", zap.NewNop())

	page, err := svc.ListMessages(context.Background(), "7", 0, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, []int{50}, fake.Limits)
}

func TestListMessagesRecencyWindow(t *testing.T) {
	fake := &platformtest.Client{Messages: map[int64][]platform.Message{1: history(5)}}
	svc := NewChatService(fake, "Telegram", zap.NewNop())
	ctx := context.Background()

	page, err := svc.ListMessages(ctx, "1", 0, 5)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5)

	// The upstream fetch is bounded by limit, so a window of 2 is taken
	// from the 2 newest messages only.
	page, err = svc.ListMessages(ctx, "1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, ids(page))
	assert.Equal(t, 2, page.TotalCount)

	page, err = svc.ListMessages(ctx, "1", 2, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.NotNil(t, page.Messages)
	assert.Equal(t, 2, page.TotalCount)
}

func TestListMessagesWindowOverFullBatch(t *testing.T) {
	fake := &platformtest.Client{
		Messages:    map[int64][]platform.Message{1: history(5)},
		IgnoreLimit: true,
	}
	svc := NewChatService(fake, "Telegram", zap.NewNop())
	ctx := context.Background()

	page, err := svc.ListMessages(ctx, "1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, ids(page))
	assert.Equal(t, 5, page.TotalCount)

	page, err = svc.ListMessages(ctx, "1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(page))

	page, err = svc.ListMessages(ctx, "1", 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, 5, page.TotalCount)
}

func TestListMessagesSenderFallback(t *testing.T) {
	fake := &platformtest.Client{
		Messages: map[int64][]platform.Message{1: {
			{ID: 1, Date: at(1), Text: "a", SenderID: 5},
			{ID: 2, Date: at(2), Text: "b", SenderID: 6},
			{ID: 3, Date: at(3), Text: "c", Out: true, SenderID: 1},
			{ID: 4, Date: at(4), HasMedia: true, SenderID: 6},
		}},
		Peers: map[int64]platform.Peer{5: {Kind: platform.PeerUser, ID: 5, FirstName: "Ann"}},
	}
	svc := NewChatService(fake, "Telegram", zap.NewNop())

	page, err := svc.ListMessages(context.Background(), "1", 0, 50)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "Ann", page.Messages[0].SenderName)
	assert.Equal(t, "User 6", page.Messages[1].SenderName)
	assert.Equal(t, "You", page.Messages[2].SenderName)
}

func TestListMessagesErrors(t *testing.T) {
	svc := NewChatService(nil, "Telegram", zap.NewNop())
	_, err := svc.ListMessages(context.Background(), "1", 0, 10)
	assert.ErrorIs(t, err, ErrClientNotInitialized)

	fake := &platformtest.Client{}
	svc = NewChatService(fake, "Telegram", zap.NewNop())
	_, err = svc.ListMessages(context.Background(), "abc", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidChatID)

	fake.Err = platform.ErrNotConnected
	_, err = svc.ListMessages(context.Background(), "1", 0, 10)
	assert.ErrorIs(t, err, platform.ErrNotConnected)
}

func TestListChats(t *testing.T) {
	fake := &platformtest.Client{Dialogs: []platform.Dialog{
		{Peer: platform.Peer{Kind: platform.PeerUser, ID: 1, FirstName: "John"}, UnreadCount: 1,
			TopMessage: &platform.Message{ID: 9, Date: at(0), Text: "hi"}},
		{Peer: platform.Peer{Kind: platform.PeerChannel, ID: 2, Title: "Chat"}},
	}}
	svc := NewChatService(fake, "Work", zap.NewNop())

	chats, err := svc.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "John", chats[0].Name)
	assert.Equal(t, "hi", chats[0].LastMessage)
	assert.Equal(t, "Work", chats[0].AccountName)
	assert.Equal(t, "supergroup", chats[1].Type)

	_, err = NewChatService(nil, "Work", zap.NewNop()).ListChats(context.Background())
	assert.ErrorIs(t, err, ErrClientNotInitialized)
}

func TestSendMessage(t *testing.T) {
	fake := &platformtest.Client{}
	svc := NewChatService(fake, "Telegram", zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.SendMessage(ctx, "x", ""), ErrEmptyText)
	assert.ErrorIs(t, svc.SendMessage(ctx, "x", "hi"), ErrInvalidChatID)
	assert.Zero(t, fake.SentCount())

	require.NoError(t, svc.SendMessage(ctx, "42", "hello"))
	// only the empty string is rejected
	require.NoError(t, svc.SendMessage(ctx, "42", "   "))
	assert.Equal(t, []platformtest.Sent{{ChatID: 42, Text: "hello"}, {ChatID: 42, Text: "   "}}, fake.Sent)

	fake.SendErr = errors.New("flood")
	assert.Error(t, svc.SendMessage(ctx, "42", "again"))

	assert.ErrorIs(t, NewChatService(nil, "", zap.NewNop()).SendMessage(ctx, "1", ""), ErrClientNotInitialized)
}

func TestSubmitSecretsReconnect(t *testing.T) {
	fake := &platformtest.Client{}
	svc := NewChatService(fake, "Telegram", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SubmitAuthCode(ctx, "12345"))
	assert.Equal(t, "12345", fake.Code)
	assert.Equal(t, 1, fake.Connects)

	require.NoError(t, svc.SubmitPassword(ctx, "secret"))
	assert.Equal(t, "secret", fake.Password)
	assert.Equal(t, 2, fake.Connects)

	assert.ErrorIs(t, svc.SubmitAuthCode(ctx, " "), ErrEmptySecret)
	assert.ErrorIs(t, svc.SubmitPassword(ctx, ""), ErrEmptySecret)
	assert.Equal(t, 2, fake.Connects)

	fake.ConnectErr = errors.New("PHONE_CODE_INVALID")
	assert.Error(t, svc.SubmitAuthCode(ctx, "1"))
}
