package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/models"
	"github.com/IvanBaradan/Tatargram/internal/platform"
	"github.com/IvanBaradan/Tatargram/internal/platform/platformtest"
	"github.com/IvanBaradan/Tatargram/internal/repository"
	"github.com/IvanBaradan/Tatargram/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

type env struct {
	router *gin.Engine
	fake   *platformtest.Client
}

func newRouter(client platform.Client, syncer Syncer) *gin.Engine {
	logger := zap.NewNop()
	chats := service.NewChatService(client, "Telegram", logger)
	chatHandler := NewChatHandler(chats, logger)
	authHandler := NewAuthHandler(chats, logger)
	syncHandler := NewSyncHandler(syncer, logger)

	r := gin.New()
	r.GET("/", Welcome)
	r.GET("/health", Health)
	api := r.Group("/api")
	api.GET("/chats", chatHandler.GetChats)
	api.GET("/chats/:chat_id/messages", chatHandler.GetMessages)
	api.POST("/chats/:chat_id/messages", chatHandler.SendMessage)
	api.POST("/auth/code", authHandler.SubmitCode)
	api.POST("/auth/password", authHandler.SubmitPassword)
	api.POST("/sync", syncHandler.Sync)
	return r
}

func newEnv() *env {
	fake := &platformtest.Client{
		Dialogs: []platform.Dialog{
			{
				Peer:        platform.Peer{Kind: platform.PeerUser, ID: 7, FirstName: "John"},
				UnreadCount: 2,
				TopMessage:  &platform.Message{ID: 3, Date: at(3), Text: "t3"},
			},
		},
		Messages: map[int64][]platform.Message{
			7: {
				{ID: 3, Date: at(3), Text: "t3", SenderID: 7},
				{ID: 1, Date: at(1), Text: "t1", SenderID: 7},
				{ID: 2, Date: at(2), Text: "t2", Out: true},
			},
		},
		Peers: map[int64]platform.Peer{
			7: {Kind: platform.PeerUser, ID: 7, FirstName: "John"},
		},
	}
	return &env{router: newRouter(fake, nil), fake: fake}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, w).Detail
}

func TestHealthAndWelcome(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = do(e.router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["message"], "/api/chats")
}

func TestGetChats(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodGet, "/api/chats", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Chats []models.Chat `json:"chats"`
	}](t, w)
	require.Len(t, body.Chats, 1)
	chat := body.Chats[0]
	assert.Equal(t, "7", chat.ID)
	assert.Equal(t, "John", chat.Name)
	assert.Equal(t, models.ChatTypeUser, chat.Type)
	assert.Equal(t, 2, chat.UnreadCount)
	assert.Equal(t, "t3", chat.LastMessage)
	require.NotNil(t, chat.LastMessageDate)
	assert.Equal(t, "2024-05-01T12:03:00+00:00", *chat.LastMessageDate)
}

func TestGetMessagesOrdersOldestFirst(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodGet, "/api/chats/7/messages", "")
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[service.MessagePage](t, w)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "1", page.Messages[0].ID)
	assert.Equal(t, "2", page.Messages[1].ID)
	assert.Equal(t, "3", page.Messages[2].ID)
	assert.Equal(t, "John", page.Messages[0].SenderName)
	assert.Equal(t, "You", page.Messages[1].SenderName)
	assert.True(t, page.Messages[1].FromMe)
	assert.Equal(t, []int{50}, e.fake.Limits)
}

func TestGetMessagesWindow(t *testing.T) {
	e := newEnv()
	msgs := make([]platform.Message, 5)
	for i := range msgs {
		msgs[i] = platform.Message{ID: i + 1, Date: at(i), Text: "m"}
	}
	e.fake.Messages[7] = msgs
	e.fake.IgnoreLimit = true

	w := do(e.router, http.MethodGet, "/api/chats/7/messages?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.MessagePage](t, w)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "4", page.Messages[0].ID)
	assert.Equal(t, "5", page.Messages[1].ID)

	w = do(e.router, http.MethodGet, "/api/chats/7/messages?limit=2&offset=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[service.MessagePage](t, w)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "2", page.Messages[0].ID)
	assert.Equal(t, "3", page.Messages[1].ID)
	assert.Equal(t, 5, page.TotalCount)

	w = do(e.router, http.MethodGet, "/api/chats/7/messages?limit=2&offset=9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[],"totalCount":5}`, w.Body.String())
}

func TestGetMessagesBadParams(t *testing.T) {
	e := newEnv()

	for _, path := range []string{
		"/api/chats/7/messages?offset=-1",
		"/api/chats/7/messages?offset=abc",
		"/api/chats/7/messages?limit=0",
		"/api/chats/7/messages?limit=x",
		"/api/chats/abc/messages",
	} {
		w := do(e.router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.NotEmpty(t, detail(t, w), path)
	}
	assert.Empty(t, e.fake.Limits)
}

func TestGetMessagesErrors(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodGet, "/api/chats/99/messages", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	e.fake.Err = errors.New("FLOOD_WAIT")
	w = do(e.router, http.MethodGet, "/api/chats/7/messages", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "FLOOD_WAIT", detail(t, w))

	e.fake.Err = platform.ErrUnauthorized
	w = do(e.router, http.MethodGet, "/api/chats", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.fake.Err = platform.ErrNotConnected
	w = do(e.router, http.MethodGet, "/api/chats", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendMessage(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodPost, "/api/chats/7/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"sent"}`, w.Body.String())
	assert.Equal(t, []platformtest.Sent{{ChatID: 7, Text: "hello"}}, e.fake.Sent)
}

func TestSendMessageEmptyTextNeverSends(t *testing.T) {
	e := newEnv()

	for _, body := range []string{`{"text":""}`, `{}`} {
		w := do(e.router, http.MethodPost, "/api/chats/x/messages", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Message text cannot be empty", detail(t, w), body)
	}
	assert.Zero(t, e.fake.SentCount())
}

func TestSendMessageFailures(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodPost, "/api/chats/7/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e.router, http.MethodPost, "/api/chats/abc/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.fake.SendErr = platform.ErrUnauthorized
	w = do(e.router, http.MethodPost, "/api/chats/7/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.fake.SendErr = platform.ErrNotConnected
	w = do(e.router, http.MethodPost, "/api/chats/7/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	e.fake.SendErr = errors.New("PEER_ID_INVALID")
	w = do(e.router, http.MethodPost, "/api/chats/7/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to send message", detail(t, w))
	assert.Zero(t, e.fake.SentCount())
}

func TestUninitializedClient(t *testing.T) {
	r := newRouter(nil, nil)

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/chats", ""},
		{http.MethodGet, "/api/chats/7/messages", ""},
		{http.MethodPost, "/api/chats/7/messages", `{"text":"hi"}`},
		{http.MethodPost, "/api/auth/code", `{"code":"12345"}`},
		{http.MethodPost, "/api/auth/password", `{"password":"secret"}`},
		{http.MethodPost, "/api/sync", ""},
	}
	for _, req := range requests {
		w := do(r, req.method, req.path, req.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, req.path)
		assert.Equal(t, "Telegram client not initialized", detail(t, w), req.path)
	}

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestSubmitAuth(t *testing.T) {
	e := newEnv()

	w := do(e.router, http.MethodPost, "/api/auth/code", `{"code":"12345"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Authentication code accepted"}`, w.Body.String())
	assert.Equal(t, "12345", e.fake.Code)

	w = do(e.router, http.MethodPost, "/api/auth/password", `{"password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", e.fake.Password)
	assert.Equal(t, 2, e.fake.Connects)

	w = do(e.router, http.MethodPost, "/api/auth/code", `{"code":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.fake.ConnectErr = errors.New("PHONE_CODE_INVALID")
	w = do(e.router, http.MethodPost, "/api/auth/code", `{"code":"00000"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PHONE_CODE_INVALID", detail(t, w))
}

type syncerFunc func(ctx context.Context) (*service.SyncResult, error)

func (f syncerFunc) Sync(ctx context.Context) (*service.SyncResult, error) { return f(ctx) }

func TestSync(t *testing.T) {
	fake := &platformtest.Client{}
	r := newRouter(fake, syncerFunc(func(context.Context) (*service.SyncResult, error) {
		return &service.SyncResult{Chats: 2, Messages: 10, Failed: 1}, nil
	}))

	w := do(r, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"chats":2,"messages":10,"failed":1}`, w.Body.String())

	r = newRouter(fake, syncerFunc(func(context.Context) (*service.SyncResult, error) {
		return nil, platform.ErrNotConnected
	}))
	w = do(r, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStoredEndpoints(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewDB(ctx, "sqlite:///"+filepath.Join(t.TempDir(), "stored.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))

	chats := repository.NewChatRepository(db, zap.NewNop())
	messages := repository.NewMessageRepository(db, zap.NewNop())
	require.NoError(t, chats.UpsertChat(ctx, &models.Chat{
		ID: "7", ChatID: "7", UserID: "7", Platform: models.PlatformTelegram,
		Name: "John", Type: models.ChatTypeUser, AccountName: "Telegram",
	}))
	for i := 1; i <= 4; i++ {
		id := string(rune('0' + i))
		require.NoError(t, messages.UpsertMessage(ctx, &models.Message{
			ID: id, MessageID: id, ChatID: "7",
			CreatedAt:   models.FormatTime(at(i)),
			MessageType: models.MessageTypeText,
			TextContent: "m" + id,
			IsRead:      true,
			IsDelivered: true,
		}))
	}

	h := NewStoredHandler(chats, messages, zap.NewNop())
	r := gin.New()
	r.GET("/api/stored/chats", h.GetChats)
	r.GET("/api/stored/chats/:chat_id/messages", h.GetMessages)

	w := do(r, http.MethodGet, "/api/stored/chats", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Chats []models.Chat `json:"chats"`
	}](t, w)
	require.Len(t, body.Chats, 1)
	assert.Equal(t, "John", body.Chats[0].Name)

	w = do(r, http.MethodGet, "/api/stored/chats/7/messages?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.MessagePage](t, w)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "2", page.Messages[0].ID)
	assert.Equal(t, "4", page.Messages[2].ID)

	w = do(r, http.MethodGet, "/api/stored/chats/8/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[],"totalCount":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/stored/chats/abc/messages", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketEcho(t *testing.T) {
	r := gin.New()
	r.GET("/ws/chats/", NewWebSocketHandler(zap.NewNop()).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "You sent: ping", string(data))
}
