package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovoronin/pairline/internal/bot"
	"github.com/ovoronin/pairline/internal/botapi"
	"github.com/ovoronin/pairline/internal/config"
	"github.com/ovoronin/pairline/internal/domain"
	"github.com/ovoronin/pairline/internal/gateway"
	"github.com/ovoronin/pairline/internal/httpserver"
	"github.com/ovoronin/pairline/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()
	logger.Info("database ready", "path", cfg.DatabasePath)

	sender := botapi.NewClient(cfg.APIURL, cfg.BotToken)
	recency := domain.NewRecencyTracker()
	sessions := domain.NewSessionManager(repo, recency, logger)
	matchmaker := domain.NewMatchmaker(repo, repo, recency, cfg.ViewCooldown, cfg.PostTTL, logger)
	relay := domain.NewRelay(sessions, sender, repo, cfg.OversightChatID, logger)
	broadcaster := domain.NewBroadcaster(repo, sender, cfg.AdminToken, cfg.BroadcastPacing, logger)
	stats := domain.NewStatsService(repo, repo, repo, cfg.PostTTL)
	janitor := domain.NewJanitor(repo, recency, cfg.PostTTL, cfg.ViewRetention, 0, logger)

	router := bot.NewRouter(repo, repo, sessions, matchmaker, relay, broadcaster, stats, sender, cfg.OversightChatID, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Inbound events from the platform gateway.
	subscriber := gateway.NewSubscriber(cfg.GatewayURL, cfg.BotToken, router, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("gateway subscriber exited with error", "error", err)
		}
	}()

	// Background time-policy sweeps.
	go janitor.StartPostSweep(ctx, domain.DefaultPostSweepInterval)
	go janitor.StartViewSweep(ctx, domain.DefaultViewSweepInterval)
	go janitor.StartPairingReset(ctx, domain.DefaultPairingResetInterval)

	server := httpserver.NewServer(cfg.Port, stats, cfg.AdminToken, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server exited with error", "error", err)
		}
	}()

	logger.Info("service started", "port", cfg.Port)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down ops server", "error", err)
	}

	return nil
}
