package realtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoahAinsworth/serialbowl/internal/domain"
)

func TestToDomainPostKinds(t *testing.T) {
	createdAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	post, err := toDomainPost(&postEvent{ID: "p1", AuthorID: "a1", Kind: "thought", Text: "hi", CreatedAt: createdAt})
	require.NoError(t, err)
	assert.Equal(t, domain.PostKindThought, post.Kind)
	assert.Equal(t, domain.ThoughtBody{}, post.Body)

	post, err = toDomainPost(&postEvent{ID: "p2", Kind: "review", ShowID: "show", Rating: 8})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewBody{ShowID: "show", Rating: 8}, post.Body)

	post, err = toDomainPost(&postEvent{ID: "p3", Kind: "rating", ShowID: "show", Season: 2, Episode: 5, Stars: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingBody{ShowID: "show", Season: 2, Episode: 5, Stars: 4}, post.Body)

	post, err = toDomainPost(&postEvent{ID: "p4", Kind: "video", ShowID: "show", VideoURL: "https://v.example/clip"})
	require.NoError(t, err)
	assert.Equal(t, domain.VideoBody{ShowID: "show", URL: "https://v.example/clip"}, post.Body)
}

func TestToDomainPostUnknownKind(t *testing.T) {
	_, err := toDomainPost(&postEvent{ID: "p1", Kind: "poll"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll")
}

func TestBuildURL(t *testing.T) {
	s := NewSubscriber("wss://backend.example/realtime", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	u := s.buildURL(0)
	assert.Contains(t, u, "channels=posts")
	assert.Contains(t, u, "channels=engagement")
	assert.NotContains(t, u, "cursor=")

	u = s.buildURL(1234)
	assert.Contains(t, u, "cursor=1234")
}

// recordingRepo captures the pool mutations an event stream produces.
type recordingRepo struct {
	created []string
	deleted []string
	counts  map[string]domain.EngagementCounts
}

func (r *recordingRepo) CreatePost(_ context.Context, post *domain.Post) error {
	r.created = append(r.created, post.ID)
	return nil
}

func (r *recordingRepo) DeletePost(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *recordingRepo) UpdateEngagement(_ context.Context, id string, counts domain.EngagementCounts) error {
	if r.counts == nil {
		r.counts = make(map[string]domain.EngagementCounts)
	}
	r.counts[id] = counts
	return nil
}

func (r *recordingRepo) ListCandidates(_ context.Context, _ int) ([]domain.Post, error) {
	return nil, nil
}

func (r *recordingRepo) ListByTime(_ context.Context, _ int, _ time.Time, _ string) ([]domain.Post, error) {
	return nil, nil
}

func (r *recordingRepo) ListByAuthors(_ context.Context, _ []string, _ int, _ time.Time, _ string) ([]domain.Post, error) {
	return nil, nil
}

type noFollows struct{}

func (noFollows) ListFollowed(_ context.Context, _ string) ([]string, error) { return nil, nil }

type memCursors struct{ cursors map[string]int64 }

func (c *memCursors) GetStreamCursor(_ context.Context, stream string) (int64, error) {
	return c.cursors[stream], nil
}

func (c *memCursors) UpdateStreamCursor(_ context.Context, stream string, cursor int64) error {
	if c.cursors == nil {
		c.cursors = make(map[string]int64)
	}
	c.cursors[stream] = cursor
	return nil
}

func TestHandleEvent(t *testing.T) {
	repo := &recordingRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feeds := domain.NewFeedService(domain.NewRanker(domain.DefaultRankingConfig()), repo, noFollows{}, &memCursors{}, logger)
	s := NewSubscriber("wss://backend.example/realtime", feeds, logger)
	ctx := context.Background()

	applied, err := s.handleEvent(ctx, &streamEvent{
		Kind: "post_created",
		Post: &postEvent{ID: "p1", AuthorID: "a1", Kind: "thought", CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"p1"}, repo.created)

	applied, err = s.handleEvent(ctx, &streamEvent{
		Kind:   "engagement",
		Counts: &engagementEvent{PostID: "p1", Likes: 3, Comments: 1},
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.EngagementCounts{Likes: 3, Comments: 1}, repo.counts["p1"])

	applied, err = s.handleEvent(ctx, &streamEvent{Kind: "post_deleted", Deleted: "p1"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, []string{"p1"}, repo.deleted)

	// Unknown and incomplete events are ignored without error.
	for _, ev := range []*streamEvent{
		{Kind: "unknown"},
		{Kind: "post_created"},
		{Kind: "engagement"},
		{Kind: "post_deleted"},
	} {
		applied, err = s.handleEvent(ctx, ev)
		require.NoError(t, err)
		assert.False(t, applied)
	}

	// A post with an unrecognized kind surfaces the conversion error.
	_, err = s.handleEvent(ctx, &streamEvent{
		Kind: "post_created",
		Post: &postEvent{ID: "p9", Kind: "poll"},
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "poll"))
}
