package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ArticleInbox/internal/app"
	"ArticleInbox/internal/config"
	"ArticleInbox/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "articleinbox",
	Short: "Telegram article inbox with an LLM processing pipeline",
	Long: `Receives forwarded articles through a Telegram bot, normalizes them with
a chat-completions model and stores the result as structured articles,
served back over a small read API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(configPath)
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger := logging.New(cfg.Logging.Level)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}

		logger.Info("starting", "db", cfg.Database.Path, "http", cfg.HTTP.Addr)
		if err := application.Run(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			return err
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
