package domain

import (
	"context"
	"sort"
	"time"
)

// In-memory fakes for the persistence ports.

type fakePostRepo struct {
	posts map[string]Post
}

func newFakePostRepo(posts ...Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[string]Post)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) CreatePost(_ context.Context, post *Post) error {
	if _, ok := r.posts[post.ID]; !ok {
		r.posts[post.ID] = *post
	}
	return nil
}

func (r *fakePostRepo) DeletePost(_ context.Context, id string) error {
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) UpdateEngagement(_ context.Context, id string, counts EngagementCounts) error {
	p, ok := r.posts[id]
	if !ok {
		return nil
	}
	p.Likes = counts.Likes
	p.Dislikes = counts.Dislikes
	p.Comments = counts.Comments
	p.Reshares = counts.Reshares
	p.Views = counts.Views
	r.posts[id] = p
	return nil
}

func (r *fakePostRepo) sorted() []Post {
	out := make([]Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakePostRepo) ListCandidates(_ context.Context, window int) ([]Post, error) {
	out := r.sorted()
	if len(out) > window {
		out = out[:window]
	}
	return out, nil
}

func (r *fakePostRepo) listBefore(authorIDs []string, limit int, before time.Time, beforeID string) []Post {
	allowed := make(map[string]bool)
	for _, id := range authorIDs {
		allowed[id] = true
	}

	var out []Post
	for _, p := range r.sorted() {
		if authorIDs != nil && !allowed[p.AuthorID] {
			continue
		}
		if !before.IsZero() {
			if p.CreatedAt.After(before) || p.CreatedAt.Equal(before) && p.ID >= beforeID {
				continue
			}
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (r *fakePostRepo) ListByTime(_ context.Context, limit int, before time.Time, beforeID string) ([]Post, error) {
	return r.listBefore(nil, limit, before, beforeID), nil
}

func (r *fakePostRepo) ListByAuthors(_ context.Context, authorIDs []string, limit int, before time.Time, beforeID string) ([]Post, error) {
	return r.listBefore(authorIDs, limit, before, beforeID), nil
}

type fakeFollowRepo struct {
	followed map[string][]string
}

func (r *fakeFollowRepo) ListFollowed(_ context.Context, userID string) ([]string, error) {
	return r.followed[userID], nil
}

type fakeCursorRepo struct {
	cursors map[string]int64
}

func (r *fakeCursorRepo) GetStreamCursor(_ context.Context, stream string) (int64, error) {
	return r.cursors[stream], nil
}

func (r *fakeCursorRepo) UpdateStreamCursor(_ context.Context, stream string, cursor int64) error {
	if r.cursors == nil {
		r.cursors = make(map[string]int64)
	}
	r.cursors[stream] = cursor
	return nil
}

type fakeWatchRepo struct {
	watched map[string]map[EpisodeRef]bool
}

func (r *fakeWatchRepo) MarkWatched(_ context.Context, userID string, ref EpisodeRef) (bool, error) {
	if r.watched == nil {
		r.watched = make(map[string]map[EpisodeRef]bool)
	}
	m := r.watched[userID]
	if m == nil {
		m = make(map[EpisodeRef]bool)
		r.watched[userID] = m
	}
	if m[ref] {
		return false, nil
	}
	m[ref] = true
	return true, nil
}

func (r *fakeWatchRepo) CountWatchedSeason(_ context.Context, userID, showID string, season int) (int, error) {
	n := 0
	for ref := range r.watched[userID] {
		if ref.ShowID == showID && ref.Season == season {
			n++
		}
	}
	return n, nil
}

func (r *fakeWatchRepo) CountWatchedShow(_ context.Context, userID, showID string) (int, error) {
	n := 0
	for ref := range r.watched[userID] {
		if ref.ShowID == showID {
			n++
		}
	}
	return n, nil
}

func (r *fakeWatchRepo) TrackedShows(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var shows []string
	for _, refs := range r.watched {
		for ref := range refs {
			if !seen[ref.ShowID] {
				seen[ref.ShowID] = true
				shows = append(shows, ref.ShowID)
			}
		}
	}
	sort.Strings(shows)
	return shows, nil
}

type fakePointsRepo struct {
	state map[string]UserPointsState
	log   []PointsLogEntry
}

func (r *fakePointsRepo) GetState(_ context.Context, userID string) (UserPointsState, error) {
	return r.state[userID], nil
}

func (r *fakePointsRepo) AddPoints(_ context.Context, userID string, points, showScore int, now time.Time) error {
	if r.state == nil {
		r.state = make(map[string]UserPointsState)
	}
	s := r.state[userID]
	if sameCalendarDay(s.DailyResetAt, now) {
		s.DailyPointsEarned += points
	} else {
		s.DailyPointsEarned = points
	}
	s.DailyResetAt = now
	s.TotalBingePoints += points
	s.ShowScore += showScore
	r.state[userID] = s
	return nil
}

func (r *fakePointsRepo) AppendLog(_ context.Context, entry PointsLogEntry) error {
	r.log = append(r.log, entry)
	return nil
}

func (r *fakePointsRepo) CountBatchesSince(_ context.Context, userID string, since time.Time) (int, error) {
	n := 0
	for _, e := range r.log {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakePointsRepo) PruneLog(_ context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var kept []PointsLogEntry
	var deleted int64
	for _, e := range r.log {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.log = kept
	return deleted, nil
}

type fakeCatalogRepo struct {
	counts map[string]map[int]int
}

func (r *fakeCatalogRepo) SeasonEpisodeCount(_ context.Context, showID string, season int) (int, error) {
	return r.counts[showID][season], nil
}

func (r *fakeCatalogRepo) ShowEpisodeCount(_ context.Context, showID string) (int, error) {
	total := 0
	for _, n := range r.counts[showID] {
		total += n
	}
	return total, nil
}

func (r *fakeCatalogRepo) UpsertSeasonEpisodeCount(_ context.Context, showID string, season, episodes int) error {
	if r.counts == nil {
		r.counts = make(map[string]map[int]int)
	}
	if r.counts[showID] == nil {
		r.counts[showID] = make(map[int]int)
	}
	r.counts[showID][season] = episodes
	return nil
}
