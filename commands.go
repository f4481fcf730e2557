package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/collector"
	"github.com/IvanBaradan/Tatargram/internal/config"
	"github.com/IvanBaradan/Tatargram/internal/logger"
	"github.com/IvanBaradan/Tatargram/internal/repository"
	"github.com/IvanBaradan/Tatargram/internal/server"
	"github.com/IvanBaradan/Tatargram/internal/service"
	"github.com/IvanBaradan/Tatargram/internal/telegram"
)

const disconnectTimeout = 10 * time.Second

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP bridge",
			Action: serve,
		},
		{
			Name:   "migrate",
			Usage:  "create or upgrade the mirror tables",
			Action: migrate,
		},
		{
			Name:   "sync",
			Usage:  "mirror chats and recent messages into the database once",
			Action: syncOnce,
		},
		{
			Name:  "session",
			Usage: "manage the Telegram session file",
			Subcommands: []*cli.Command{
				{
					Name:   "check",
					Usage:  "connect and print the signed in account",
					Action: sessionCheck,
				},
				{
					Name:   "remove",
					Usage:  "delete the session file to force a new login",
					Action: sessionRemove,
				},
			},
		},
	}
}

// setup loads the configuration and builds the logger.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	return cfg, log, nil
}

func validate(cfg *config.Config, log *zap.Logger) error {
	problems := cfg.Validate()
	if len(problems) == 0 {
		return nil
	}
	for _, p := range problems {
		log.Error("Invalid configuration", zap.String("problem", p))
	}
	return cli.Exit("invalid configuration: "+strings.Join(problems, "; "), 1)
}

func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	db, err := repository.NewDB(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}
	if err := repository.MigrateDB(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func disconnect(client *telegram.Client, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn("Failed to disconnect Telegram client", zap.Error(err))
	}
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := validate(cfg, log); err != nil {
		return err
	}
	interval, err := cfg.Sync.IntervalDuration()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := openDB(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return err
	}
	defer db.Close()

	chatRepo := repository.NewChatRepository(db, log)
	messageRepo := repository.NewMessageRepository(db, log)

	tgClient := telegram.NewClient(cfg.Telegram, log)
	defer disconnect(tgClient, log)

	// The API stays up without a session so a login code can be submitted.
	if err := tgClient.Connect(ctx); err != nil {
		log.Warn("Telegram client not ready", zap.Error(err))
	} else if !tgClient.Authorized() {
		log.Warn("Telegram account awaits a login code on POST /api/auth/code")
	}

	chats := service.NewChatService(tgClient, cfg.Telegram.AccountName, log)
	mirror := service.NewMirror(tgClient, chatRepo, messageRepo, cfg.Telegram.AccountName, cfg.Sync.MessageLimit, log)

	if interval > 0 {
		done := collector.NewCollector(mirror, interval, log).Start(ctx)
		// the collector must finish before the client and database close
		defer func() {
			cancel()
			<-done
		}()
	}

	srv := server.NewServer(cfg, server.Deps{
		Chats:          chats,
		Syncer:         mirror,
		StoredChats:    chatRepo,
		StoredMessages: messageRepo,
	}, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("Server failed", zap.Error(err))
		return err
	}

	log.Info("Application stopped")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := openDB(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("Database is up to date")
	return nil
}

func syncOnce(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := validate(cfg, log); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	tgClient := telegram.NewClient(cfg.Telegram, log)
	defer disconnect(tgClient, log)
	if err := tgClient.Connect(ctx); err != nil {
		return err
	}

	mirror := service.NewMirror(
		tgClient,
		repository.NewChatRepository(db, log),
		repository.NewMessageRepository(db, log),
		cfg.Telegram.AccountName,
		cfg.Sync.MessageLimit,
		log,
	)
	_, err = mirror.Sync(ctx)
	return err
}

func sessionCheck(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := validate(cfg, log); err != nil {
		return err
	}

	tgClient := telegram.NewClient(cfg.Telegram, log)
	defer disconnect(tgClient, log)
	if err := tgClient.Connect(c.Context); err != nil {
		return err
	}

	self, err := tgClient.Self(c.Context)
	if err != nil {
		return err
	}
	log.Info("Session is valid",
		zap.Int64("user_id", self.ID),
		zap.String("username", self.Username),
		zap.String("session_file", cfg.Telegram.SessionFile),
	)
	return nil
}

func sessionRemove(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	err = os.Remove(cfg.Telegram.SessionFile)
	switch {
	case err == nil:
		log.Info("Session file removed", zap.String("path", cfg.Telegram.SessionFile))
	case errors.Is(err, os.ErrNotExist):
		log.Info("No session file to remove", zap.String("path", cfg.Telegram.SessionFile))
	default:
		return err
	}
	return nil
}
