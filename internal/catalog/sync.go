// Package catalog keeps the season episode-count lookup in sync with the
// TV metadata API. The points evaluator compares watched counts against
// this lookup when deciding completion bonuses.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NoahAinsworth/serialbowl/internal/domain"
	"github.com/NoahAinsworth/serialbowl/internal/tvmeta"
)

// MetadataClient is the slice of the metadata API the syncer needs.
type MetadataClient interface {
	GetShow(ctx context.Context, showID string) (*tvmeta.Show, error)
}

// Syncer resolves shows against the metadata API and upserts their season
// episode counts.
type Syncer struct {
	client  MetadataClient
	catalog domain.CatalogRepository
	watches domain.WatchRepository
	logger  *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(client MetadataClient, catalog domain.CatalogRepository, watches domain.WatchRepository, logger *slog.Logger) *Syncer {
	return &Syncer{
		client:  client,
		catalog: catalog,
		watches: watches,
		logger:  logger,
	}
}

// SyncShow refreshes the episode counts of a single show.
func (s *Syncer) SyncShow(ctx context.Context, showID string) error {
	show, err := s.client.GetShow(ctx, showID)
	if err != nil {
		return fmt.Errorf("fetch show %s: %w", showID, err)
	}

	for _, season := range show.Seasons {
		if err := s.catalog.UpsertSeasonEpisodeCount(ctx, showID, season.Number, season.EpisodeCount); err != nil {
			return fmt.Errorf("upsert season count %s s%d: %w", showID, season.Number, err)
		}
	}

	s.logger.Info("synced show catalog", "show", showID, "seasons", len(show.Seasons))
	return nil
}

// SyncTracked refreshes every show that appears in anyone's watch history.
// A failure on one show is logged and does not stop the rest.
func (s *Syncer) SyncTracked(ctx context.Context) error {
	shows, err := s.watches.TrackedShows(ctx)
	if err != nil {
		return fmt.Errorf("list tracked shows: %w", err)
	}

	var failed int
	for _, showID := range shows {
		if err := s.SyncShow(ctx, showID); err != nil {
			s.logger.Error("show sync failed", "show", showID, "error", err)
			failed++
		}
	}

	s.logger.Info("catalog sync complete", "shows", len(shows), "failed", failed)
	if failed == len(shows) && len(shows) > 0 {
		return fmt.Errorf("all %d show syncs failed", failed)
	}
	return nil
}
