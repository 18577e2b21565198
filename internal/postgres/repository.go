package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/NoahAinsworth/serialbowl/internal/domain"
	"github.com/lib/pq"
)

// Repository implements the domain persistence ports (posts, follows, watch
// history, points, catalog counts, stream cursors) using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const postColumns = `id, author_id, kind, body_text, likes, dislikes, comments, reshares, views, created_at, show_id, rating, season, episode, video_url`

// CreatePost inserts a new post. Re-delivered events are a no-op.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	var showID, videoURL sql.NullString
	var rating, season, episode sql.NullInt64
	switch b := post.Body.(type) {
	case domain.ReviewBody:
		showID = sql.NullString{String: b.ShowID, Valid: true}
		rating = sql.NullInt64{Int64: int64(b.Rating), Valid: true}
	case domain.RatingBody:
		showID = sql.NullString{String: b.ShowID, Valid: true}
		season = sql.NullInt64{Int64: int64(b.Season), Valid: true}
		episode = sql.NullInt64{Int64: int64(b.Episode), Valid: true}
		rating = sql.NullInt64{Int64: int64(b.Stars), Valid: true}
	case domain.VideoBody:
		showID = sql.NullString{String: b.ShowID, Valid: true}
		videoURL = sql.NullString{String: b.URL, Valid: true}
	}

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.AuthorID,
		string(post.Kind),
		post.Text,
		post.Likes,
		post.Dislikes,
		post.Comments,
		post.Reshares,
		post.Views,
		post.CreatedAt,
		showID,
		rating,
		season,
		episode,
		videoURL,
	)
	return err
}

// DeletePost removes a post by id.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return err
}

// UpdateEngagement replaces a post's counters with the given snapshot.
func (r *Repository) UpdateEngagement(ctx context.Context, id string, counts domain.EngagementCounts) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET likes = $2, dislikes = $3, comments = $4, reshares = $5, views = $6
		WHERE id = $1`,
		id, counts.Likes, counts.Dislikes, counts.Comments, counts.Reshares, counts.Views,
	)
	return err
}

// ListCandidates returns the newest posts up to the window size.
func (r *Repository) ListCandidates(ctx context.Context, window int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		ORDER BY created_at DESC, id ASC
		LIMIT $1`,
		window,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates (window=%d): %w", window, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListByTime retrieves posts paginated by a compound (created_at, id) cursor.
func (r *Repository) ListByTime(ctx context.Context, limit int, before time.Time, beforeID string) ([]domain.Post, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if !before.IsZero() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`,
			before, beforeID, limit,
		)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			ORDER BY created_at DESC, id DESC
			LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query posts by time (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListByAuthors is ListByTime restricted to the given authors.
func (r *Repository) ListByAuthors(ctx context.Context, authorIDs []string, limit int, before time.Time, beforeID string) ([]domain.Post, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if !before.IsZero() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE author_id = ANY($1) AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`,
			pq.Array(authorIDs), before, beforeID, limit,
		)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE author_id = ANY($1)
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			pq.Array(authorIDs), limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query posts by authors (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		var (
			p               domain.Post
			kind            string
			showID, vidURL  sql.NullString
			rating, season  sql.NullInt64
			episode         sql.NullInt64
		)
		err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&kind,
			&p.Text,
			&p.Likes,
			&p.Dislikes,
			&p.Comments,
			&p.Reshares,
			&p.Views,
			&p.CreatedAt,
			&showID,
			&rating,
			&season,
			&episode,
			&vidURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Kind = domain.PostKind(kind)
		p.Body = buildBody(p.Kind, showID, rating, season, episode, vidURL)
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func buildBody(kind domain.PostKind, showID sql.NullString, rating, season, episode sql.NullInt64, videoURL sql.NullString) domain.PostBody {
	switch kind {
	case domain.PostKindReview:
		return domain.ReviewBody{ShowID: showID.String, Rating: int(rating.Int64)}
	case domain.PostKindRating:
		return domain.RatingBody{
			ShowID:  showID.String,
			Season:  int(season.Int64),
			Episode: int(episode.Int64),
			Stars:   int(rating.Int64),
		}
	case domain.PostKindVideo:
		return domain.VideoBody{ShowID: showID.String, URL: videoURL.String}
	default:
		return domain.ThoughtBody{}
	}
}

// ListFollowed returns the ids of the users that userID follows.
func (r *Repository) ListFollowed(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT followed_id FROM follows WHERE follower_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	var followed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		followed = append(followed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follows: %w", err)
	}
	return followed, nil
}

// MarkWatched upserts a watched episode keyed by user+episode. Returns true
// only when the row was newly inserted.
func (r *Repository) MarkWatched(ctx context.Context, userID string, ref domain.EpisodeRef) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_history (user_id, show_id, season, episode, watched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, show_id, season, episode) DO NOTHING`,
		userID, ref.ShowID, ref.Season, ref.Episode, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountWatchedSeason returns how many episodes of the season the user has
// watched.
func (r *Repository) CountWatchedSeason(ctx context.Context, userID, showID string, season int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watch_history
		WHERE user_id = $1 AND show_id = $2 AND season = $3`,
		userID, showID, season,
	).Scan(&n)
	return n, err
}

// CountWatchedShow returns how many episodes of the show the user has
// watched across all seasons.
func (r *Repository) CountWatchedShow(ctx context.Context, userID, showID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watch_history
		WHERE user_id = $1 AND show_id = $2`,
		userID, showID,
	).Scan(&n)
	return n, err
}

// TrackedShows returns the distinct show ids present in watch history.
func (r *Repository) TrackedShows(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT show_id FROM watch_history`)
	if err != nil {
		return nil, fmt.Errorf("query tracked shows: %w", err)
	}
	defer rows.Close()

	var shows []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan show id: %w", err)
		}
		shows = append(shows, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked shows: %w", err)
	}
	return shows, nil
}

// GetState retrieves a user's point counters, zero state for unknown users.
func (r *Repository) GetState(ctx context.Context, userID string) (domain.UserPointsState, error) {
	var s domain.UserPointsState
	err := r.db.QueryRowContext(ctx, `
		SELECT daily_points_earned, daily_points_reset_at, total_binge_points, show_score
		FROM user_points WHERE user_id = $1`,
		userID,
	).Scan(&s.DailyPointsEarned, &s.DailyResetAt, &s.TotalBingePoints, &s.ShowScore)
	if err == sql.ErrNoRows {
		return domain.UserPointsState{}, nil
	}
	return s, err
}

// AddPoints upserts the user's counters in one atomic statement. The daily
// counter rolls over when the stored reset stamp is from an earlier
// calendar day than now.
func (r *Repository) AddPoints(ctx context.Context, userID string, points, showScore int, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_points (user_id, daily_points_earned, daily_points_reset_at, total_binge_points, show_score)
		VALUES ($1, $2, $3, $2, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_points_earned = CASE
				WHEN user_points.daily_points_reset_at::date = EXCLUDED.daily_points_reset_at::date
				THEN user_points.daily_points_earned + EXCLUDED.daily_points_earned
				ELSE EXCLUDED.daily_points_earned
			END,
			daily_points_reset_at = EXCLUDED.daily_points_reset_at,
			total_binge_points = user_points.total_binge_points + EXCLUDED.total_binge_points,
			show_score = user_points.show_score + EXCLUDED.show_score`,
		userID, points, now, showScore,
	)
	return err
}

// AppendLog records one audit row per submitted batch.
func (r *Repository) AppendLog(ctx context.Context, entry domain.PointsLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO points_log (id, user_id, show_id, episode_count, points, season_bonus, show_bonus, bulk, denied, denial_rule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.UserID,
		entry.ShowID,
		entry.EpisodeCount,
		entry.Points,
		entry.SeasonBonus,
		entry.ShowBonus,
		entry.Bulk,
		entry.Denied,
		string(entry.DenialRule),
		entry.CreatedAt,
	)
	return err
}

// CountBatchesSince counts the user's audit rows at or after since.
func (r *Repository) CountBatchesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM points_log
		WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	return n, err
}

// PruneLog deletes audit rows older than maxAge. Returns the number of rows
// removed.
func (r *Repository) PruneLog(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM points_log WHERE created_at < $1`,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired log rows: %w", err)
	}
	return res.RowsAffected()
}

// SeasonEpisodeCount returns the episode count of a season, 0 if unknown.
func (r *Repository) SeasonEpisodeCount(ctx context.Context, showID string, season int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT episode_count FROM season_episode_counts
		WHERE show_id = $1 AND season = $2`,
		showID, season,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// ShowEpisodeCount returns the show's total episode count, 0 if unknown.
func (r *Repository) ShowEpisodeCount(ctx context.Context, showID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(episode_count), 0) FROM season_episode_counts
		WHERE show_id = $1`,
		showID,
	).Scan(&n)
	return n, err
}

// UpsertSeasonEpisodeCount records the episode count of a season.
func (r *Repository) UpsertSeasonEpisodeCount(ctx context.Context, showID string, season, episodes int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO season_episode_counts (show_id, season, episode_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (show_id, season) DO UPDATE SET episode_count = $3, updated_at = $4`,
		showID, season, episodes, time.Now().UTC(),
	)
	return err
}

// GetStreamCursor retrieves the saved realtime cursor for a stream.
func (r *Repository) GetStreamCursor(ctx context.Context, stream string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM stream_cursors WHERE stream = $1`, stream,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

// UpdateStreamCursor upserts the realtime cursor for a stream.
func (r *Repository) UpdateStreamCursor(ctx context.Context, stream string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stream_cursors (stream, cursor_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (stream) DO UPDATE SET cursor_value = $2, updated_at = $3`,
		stream, cursor, time.Now().UTC(),
	)
	return err
}
