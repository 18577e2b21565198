package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for the feed's post pool.
type PostRepository interface {
	// CreatePost inserts a new post into the pool. Inserting an existing
	// id is a no-op.
	CreatePost(ctx context.Context, post *Post) error

	// DeletePost removes a post by id.
	DeletePost(ctx context.Context, id string) error

	// UpdateEngagement replaces a post's reaction counters with the given
	// snapshot.
	UpdateEngagement(ctx context.Context, id string, counts EngagementCounts) error

	// ListCandidates returns the most recent posts up to the given window
	// size. This bounds per-request scoring cost; it is never a full scan.
	ListCandidates(ctx context.Context, window int) ([]Post, error)

	// ListByTime returns posts ordered by createdAt descending, strictly
	// before the (before, beforeID) pair. A zero before means the newest
	// page.
	ListByTime(ctx context.Context, limit int, before time.Time, beforeID string) ([]Post, error)

	// ListByAuthors is ListByTime restricted to the given author ids.
	ListByAuthors(ctx context.Context, authorIDs []string, limit int, before time.Time, beforeID string) ([]Post, error)
}

// FollowRepository exposes the social graph.
type FollowRepository interface {
	// ListFollowed returns the ids of the users that userID follows.
	ListFollowed(ctx context.Context, userID string) ([]string, error)
}

// WatchRepository defines persistence operations for per-user watch history.
type WatchRepository interface {
	// MarkWatched upserts a watched episode keyed by user+episode. Returns
	// true if the row was newly inserted, false if the episode was already
	// watched.
	MarkWatched(ctx context.Context, userID string, ref EpisodeRef) (bool, error)

	// CountWatchedSeason returns how many episodes of the given season the
	// user has watched.
	CountWatchedSeason(ctx context.Context, userID, showID string, season int) (int, error)

	// CountWatchedShow returns how many episodes of the show the user has
	// watched across all seasons.
	CountWatchedShow(ctx context.Context, userID, showID string) (int, error)

	// TrackedShows returns the distinct show ids present in anyone's watch
	// history, used to scope catalog sync.
	TrackedShows(ctx context.Context) ([]string, error)
}

// PointsRepository defines persistence operations for point counters and the
// per-batch audit log.
type PointsRepository interface {
	// GetState retrieves a user's point counters. Unknown users get the
	// zero state.
	GetState(ctx context.Context, userID string) (UserPointsState, error)

	// AddPoints atomically increments the user's total, daily counter, and
	// show score, rolling the daily counter over when now is a new
	// calendar day.
	AddPoints(ctx context.Context, userID string, points, showScore int, now time.Time) error

	// AppendLog records one audit row per submitted batch.
	AppendLog(ctx context.Context, entry PointsLogEntry) error

	// CountBatchesSince returns the number of audit rows for the user with
	// createdAt at or after since.
	CountBatchesSince(ctx context.Context, userID string, since time.Time) (int, error)

	// PruneLog deletes audit rows older than maxAge and returns the number
	// of rows removed.
	PruneLog(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CatalogRepository exposes the season/show episode-count lookup the
// completion bonuses compare against.
type CatalogRepository interface {
	// SeasonEpisodeCount returns the episode count of a season, or 0 when
	// the season is not in the catalog.
	SeasonEpisodeCount(ctx context.Context, showID string, season int) (int, error)

	// ShowEpisodeCount returns the total episode count across all of the
	// show's seasons, or 0 when the show is not in the catalog.
	ShowEpisodeCount(ctx context.Context, showID string) (int, error)

	// UpsertSeasonEpisodeCount records the episode count of a season.
	UpsertSeasonEpisodeCount(ctx context.Context, showID string, season, episodes int) error
}

// StreamCursorRepository defines persistence operations for realtime stream
// cursors.
type StreamCursorRepository interface {
	// GetStreamCursor retrieves the last-processed event sequence for the
	// given stream name. Returns 0 if no cursor has been saved.
	GetStreamCursor(ctx context.Context, stream string) (int64, error)

	// UpdateStreamCursor persists the stream cursor so the subscriber can
	// resume on restart.
	UpdateStreamCursor(ctx context.Context, stream string, cursor int64) error
}
