package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/config"
	"github.com/IvanBaradan/Tatargram/internal/handler"
	"github.com/IvanBaradan/Tatargram/internal/middleware"
	"github.com/IvanBaradan/Tatargram/internal/repository"
	"github.com/IvanBaradan/Tatargram/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Deps are the services behind the HTTP routes. Syncer and the stored
// repositories are optional.
type Deps struct {
	Chats          service.ChatService
	Syncer         handler.Syncer
	StoredChats    repository.ChatRepository
	StoredMessages repository.MessageRepository
}

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())

	s := &Server{
		router: router,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	chatHandler := handler.NewChatHandler(s.deps.Chats, s.logger)
	authHandler := handler.NewAuthHandler(s.deps.Chats, s.logger)
	syncHandler := handler.NewSyncHandler(s.deps.Syncer, s.logger)
	wsHandler := handler.NewWebSocketHandler(s.logger)

	s.router.GET("/", handler.Welcome)
	s.router.GET("/health", handler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/chats/", wsHandler.HandleWebSocket)

	api := s.router.Group("/api")
	if s.cfg.Auth.Enabled {
		api.Use(middleware.AuthMiddleware([]byte(s.cfg.Auth.SecretKey), s.logger))
	}
	{
		api.GET("/chats", chatHandler.GetChats)
		api.GET("/chats/:chat_id/messages", chatHandler.GetMessages)
		api.POST("/chats/:chat_id/messages", chatHandler.SendMessage)

		api.POST("/auth/code", authHandler.SubmitCode)
		api.POST("/auth/password", authHandler.SubmitPassword)

		api.POST("/sync", syncHandler.Sync)
	}

	if s.deps.StoredChats != nil && s.deps.StoredMessages != nil {
		storedHandler := handler.NewStoredHandler(s.deps.StoredChats, s.deps.StoredMessages, s.logger)
		stored := api.Group("/stored")
		stored.GET("/chats", storedHandler.GetChats)
		stored.GET("/chats/:chat_id/messages", storedHandler.GetMessages)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
