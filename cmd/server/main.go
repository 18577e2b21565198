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

	"github.com/NoahAinsworth/serialbowl/internal/auth"
	"github.com/NoahAinsworth/serialbowl/internal/catalog"
	"github.com/NoahAinsworth/serialbowl/internal/config"
	"github.com/NoahAinsworth/serialbowl/internal/domain"
	"github.com/NoahAinsworth/serialbowl/internal/httpserver"
	"github.com/NoahAinsworth/serialbowl/internal/postgres"
	"github.com/NoahAinsworth/serialbowl/internal/realtime"
	"github.com/NoahAinsworth/serialbowl/internal/tvmeta"
	"github.com/robfig/cron/v3"
)

const (
	logPruneInterval = 24 * time.Hour
	logRetention     = 90 * 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up repository (implements all domain persistence ports)
	repo, err := postgres.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("connected to database")

	ranker := domain.NewRanker(cfg.Ranking)
	feedService := domain.NewFeedService(ranker, repo, repo, repo, logger)
	pointsService := domain.NewPointsService(repo, repo, repo, logger)
	verifier := auth.NewVerifier(cfg.AuthSecret)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the realtime subscriber in the background
	subscriber := realtime.NewSubscriber(cfg.RealtimeURL, feedService, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("realtime subscriber exited with error", "error", err)
		}
	}()

	// Start background points-log pruning
	go pointsService.StartLogPruneJob(ctx, logPruneInterval, logRetention)

	// Schedule the nightly catalog sync
	metaClient := tvmeta.NewClient(cfg.MetadataAPIURL, cfg.MetadataAPIKey, tvmeta.NewTokenCache())
	syncer := catalog.NewSyncer(metaClient, repo, repo, logger)
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.CatalogSyncSchedule, func() {
		if err := syncer.SyncTracked(ctx); err != nil {
			logger.Error("scheduled catalog sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule catalog sync: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start the HTTP server
	server := httpserver.NewServer(cfg, feedService, pointsService, verifier, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
