// Package app wires configuration to adapters, use cases and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ArticleInbox/internal/aggregator"
	"ArticleInbox/internal/config"
	"ArticleInbox/internal/infrastructure/images"
	"ArticleInbox/internal/infrastructure/llm"
	"ArticleInbox/internal/infrastructure/storage"
	"ArticleInbox/internal/infrastructure/telegram"
	"ArticleInbox/internal/readside"
	"ArticleInbox/internal/usecase"
)

// Application owns the bot ingestion loop and the read-side HTTP server.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	repo     *storage.Repository
	bot      *telegram.Bot
	ingestor *usecase.Ingestor
	server   *http.Server
}

// New builds a runnable application from configuration.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	repo, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store, err := images.NewStore(cfg.Images.Dir, cfg.Images.PublicPrefix)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("open image store: %w", err)
	}

	completer := llm.NewClient(cfg.LLM)
	bot := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.PollTimeout, logger.With("component", "telegram"))

	language := usecase.NewLanguagePipeline(completer, cfg.Language, cfg.Pipeline.TagCap, logger.With("component", "language"))
	ingestor := usecase.NewIngestor(usecase.Deps{
		Language:    language,
		Repo:        repo,
		Images:      telegram.NewFiles(bot, store),
		Messenger:   bot,
		Logger:      logger.With("component", "ingest"),
		Pipeline:    cfg.Pipeline,
		Aggregation: cfg.Aggregator,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	readside.NewHandler(repo, completer, logger.With("component", "readside")).RegisterRoutes(router)

	return &Application{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		bot:      bot,
		ingestor: ingestor,
		server:   &http.Server{Addr: cfg.HTTP.Addr, Handler: router},
	}, nil
}

// Run serves the read API and polls the bot until ctx is canceled, then
// shuts both down.
func (a *Application) Run(ctx context.Context) error {
	a.ingestor.Start(ctx)

	httpErr := make(chan error, 1)
	go func() {
		a.logger.Info("read api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
			return
		}
		httpErr <- nil
	}()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- a.bot.Poll(ctx, a.handleMessage)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-httpErr:
	case runErr = <-pollErr:
	}

	a.shutdown()
	return runErr
}

func (a *Application) shutdown() {
	a.ingestor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("storage close", "error", err)
	}
}

// handleMessage maps one incoming bot message to an aggregation event. The
// /start command is answered directly and never enters the pipeline.
func (a *Application) handleMessage(ctx context.Context, msg telegram.Message) {
	if strings.TrimSpace(msg.Text) == "/start" {
		if err := a.bot.Reply(ctx, msg.Chat.ID, usecase.StartGreeting); err != nil {
			a.logger.Warn("greeting failed", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}

	a.ingestor.HandleEvent(ctx, aggregator.Event{
		ChatID:   msg.Chat.ID,
		GroupID:  msg.MediaGroupID,
		Text:     msg.Body(),
		PhotoRef: msg.PhotoRef(),
	})
}
