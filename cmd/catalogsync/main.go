package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NoahAinsworth/serialbowl/internal/catalog"
	"github.com/NoahAinsworth/serialbowl/internal/postgres"
	"github.com/NoahAinsworth/serialbowl/internal/tvmeta"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		databaseURL string
		apiURL      string
		apiKey      string
		showID      string
	)

	flag.StringVar(&databaseURL, "database-url", envOrDefault("DATABASE_URL", ""), "Postgres connection string")
	flag.StringVar(&apiURL, "api-url", envOrDefault("TVMETA_API_URL", "https://api.tvmeta.example.com"), "TV metadata API base URL")
	flag.StringVar(&apiKey, "api-key", envOrDefault("TVMETA_API_KEY", ""), "TV metadata API key")
	flag.StringVar(&showID, "show", "", "Sync a single show id instead of all tracked shows")
	flag.Parse()

	if databaseURL == "" {
		return fmt.Errorf("--database-url is required (or set DATABASE_URL)")
	}
	if apiKey == "" {
		return fmt.Errorf("--api-key is required (or set TVMETA_API_KEY)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	repo, err := postgres.NewRepository(databaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	client := tvmeta.NewClient(apiURL, apiKey, tvmeta.NewTokenCache())
	syncer := catalog.NewSyncer(client, repo, repo, logger)

	ctx := context.Background()

	if showID != "" {
		fmt.Printf("Syncing show %s...\n", showID)
		if err := syncer.SyncShow(ctx, showID); err != nil {
			return err
		}
		fmt.Println("Done")
		return nil
	}

	fmt.Println("Syncing all tracked shows...")
	if err := syncer.SyncTracked(ctx); err != nil {
		return err
	}
	fmt.Println("Done")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
