package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPageSize is the page size used when the request does not set
	// a limit.
	DefaultPageSize = 20
	// MaxPageSize bounds client-supplied limits.
	MaxPageSize = 50
	// DefaultCandidateWindow caps how many recent posts a scored tab pulls
	// into memory per request.
	DefaultCandidateWindow = 100
)

// FeedRequest is one feed page request.
type FeedRequest struct {
	Tab Tab

	// ViewerID is the authenticated caller, empty for anonymous requests.
	// Required content only exists for the following tab; anonymous
	// requests there get an empty page.
	ViewerID string

	Limit  int
	Cursor string
}

// FeedPage is one ranked page plus the continuation token. NextCursor is
// empty when the feed is exhausted.
type FeedPage struct {
	Posts      []ScoredPost
	NextCursor string
}

// FeedService is the core feed domain service. It owns tab ranking, the
// post pool, and pagination.
type FeedService struct {
	ranker          *Ranker
	posts           PostRepository
	follows         FollowRepository
	cursors         StreamCursorRepository
	logger          *slog.Logger
	candidateWindow int
	now             func() time.Time
}

// NewFeedService creates a FeedService with the given ranking weights.
func NewFeedService(ranker *Ranker, posts PostRepository, follows FollowRepository, cursors StreamCursorRepository, logger *slog.Logger) *FeedService {
	return &FeedService{
		ranker:          ranker,
		posts:           posts,
		follows:         follows,
		cursors:         cursors,
		logger:          logger,
		candidateWindow: DefaultCandidateWindow,
		now:             time.Now,
	}
}

// GetFeed returns one page of the requested tab. Scores are computed from
// the current count snapshot; they are not stable across requests, so a
// post whose counts change mid-scroll can shift across the cursor boundary.
// That drift is accepted.
func (s *FeedService) GetFeed(ctx context.Context, req FeedRequest) (*FeedPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	s.logger.Debug("GetFeed called", "tab", req.Tab, "limit", limit, "cursor", req.Cursor, "viewer", req.ViewerID)

	switch req.Tab {
	case TabNew:
		return s.chronoPage(ctx, nil, limit, req.Cursor)

	case TabFollowing:
		if req.ViewerID == "" {
			return &FeedPage{}, nil
		}
		followed, err := s.follows.ListFollowed(ctx, req.ViewerID)
		if err != nil {
			return nil, fmt.Errorf("list followed: %w", err)
		}
		if len(followed) == 0 {
			return &FeedPage{}, nil
		}
		return s.chronoPage(ctx, followed, limit, req.Cursor)

	case TabTrending, TabHotTakes, TabReviews:
		pool, err := s.posts.ListCandidates(ctx, s.candidateWindow)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		page, next, err := s.ranker.RankPage(req.Tab, pool, req.Cursor, limit, s.now())
		if err != nil {
			return nil, fmt.Errorf("rank %s page: %w", req.Tab, err)
		}
		return &FeedPage{Posts: page, NextCursor: next}, nil
	}

	return nil, fmt.Errorf("unknown tab: %q", req.Tab)
}

// chronoPage serves the createdAt-ordered tabs. authorIDs narrows the query
// to followed authors; nil means all posts.
func (s *FeedService) chronoPage(ctx context.Context, authorIDs []string, limit int, cursor string) (*FeedPage, error) {
	var before time.Time
	var beforeID string
	if cursor != "" {
		c, err := ParseCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("parse cursor: %w", err)
		}
		if c.Kind != CursorTime {
			return nil, fmt.Errorf("%w: not a time cursor", ErrBadCursor)
		}
		before = c.Time
		beforeID = c.ID
	}

	var (
		posts []Post
		err   error
	)
	if authorIDs == nil {
		posts, err = s.posts.ListByTime(ctx, limit, before, beforeID)
	} else {
		posts, err = s.posts.ListByAuthors(ctx, authorIDs, limit, before, beforeID)
	}
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	page := &FeedPage{Posts: make([]ScoredPost, len(posts))}
	for i, p := range posts {
		page.Posts[i] = ScoredPost{Post: p}
	}
	if len(posts) == limit {
		last := posts[len(posts)-1]
		page.NextCursor = EncodeTimeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// ApplyPostCreated adds a new post to the pool.
func (s *FeedService) ApplyPostCreated(ctx context.Context, post *Post) error {
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// ApplyPostDeleted removes a post from the pool.
func (s *FeedService) ApplyPostDeleted(ctx context.Context, id string) error {
	return s.posts.DeletePost(ctx, id)
}

// ApplyEngagement replaces a post's counters with a fresh snapshot from the
// realtime channel.
func (s *FeedService) ApplyEngagement(ctx context.Context, id string, counts EngagementCounts) error {
	return s.posts.UpdateEngagement(ctx, id, counts)
}

// GetStreamCursor retrieves the last-processed realtime cursor for a stream.
func (s *FeedService) GetStreamCursor(ctx context.Context, stream string) (int64, error) {
	return s.cursors.GetStreamCursor(ctx, stream)
}

// UpdateStreamCursor persists the realtime cursor for a stream.
func (s *FeedService) UpdateStreamCursor(ctx context.Context, stream string, cursor int64) error {
	return s.cursors.UpdateStreamCursor(ctx, stream, cursor)
}
