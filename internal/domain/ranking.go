package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Tab identifies a feed tab.
type Tab string

const (
	TabTrending  Tab = "trending"
	TabHotTakes  Tab = "hot-takes"
	TabReviews   Tab = "reviews"
	TabNew       Tab = "new"
	TabFollowing Tab = "following"
)

// ParseTab validates a tab name from a request.
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabTrending, TabHotTakes, TabReviews, TabNew, TabFollowing:
		return Tab(s), nil
	}
	return "", fmt.Errorf("unknown tab: %q", s)
}

// Scored reports whether the tab is ranked by a computed score rather than
// by creation time.
func (t Tab) Scored() bool {
	return t == TabTrending || t == TabHotTakes || t == TabReviews
}

// RankingConfig holds the weights and decay parameters of the scored tabs.
// The zero value is not usable; start from DefaultRankingConfig.
type RankingConfig struct {
	TrendingNetLikeWeight float64 `yaml:"trending_net_like_weight"`
	TrendingCommentWeight float64 `yaml:"trending_comment_weight"`
	TrendingBias          float64 `yaml:"trending_bias"`
	TrendingDecayExponent float64 `yaml:"trending_decay_exponent"`

	HotTakesMinReactions  int     `yaml:"hot_takes_min_reactions"`
	HotTakesDecayExponent float64 `yaml:"hot_takes_decay_exponent"`

	ReviewLikeWeight    float64 `yaml:"review_like_weight"`
	ReviewCommentWeight float64 `yaml:"review_comment_weight"`
	ReviewReshareWeight float64 `yaml:"review_reshare_weight"`
	ReviewViewWeight    float64 `yaml:"review_view_weight"`
	ReviewDislikeWeight float64 `yaml:"review_dislike_weight"`
	ReviewDecayHours    float64 `yaml:"review_decay_hours"`
}

// DefaultRankingConfig returns the production weights.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		TrendingNetLikeWeight: 1.7,
		TrendingCommentWeight: 1.2,
		TrendingBias:          3,
		TrendingDecayExponent: 1.25,

		HotTakesMinReactions:  5,
		HotTakesDecayExponent: 1.1,

		ReviewLikeWeight:    3,
		ReviewCommentWeight: 4,
		ReviewReshareWeight: 5,
		ReviewViewWeight:    0.25,
		ReviewDislikeWeight: 6,
		ReviewDecayHours:    36,
	}
}

// Ranker computes per-tab relevance scores and assembles ranked,
// cursor-paginated pages from a candidate pool.
type Ranker struct {
	cfg RankingConfig
}

// NewRanker creates a Ranker with the given weights.
func NewRanker(cfg RankingConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// ageHours returns the post's age in hours, clamped to >= 0 so that clock
// skew on createdAt can never produce a negative age.
func ageHours(createdAt, now time.Time) float64 {
	h := now.Sub(createdAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TrendingScore favors recent posts with strong net approval and discussion.
func (r *Ranker) TrendingScore(p Post, now time.Time) float64 {
	age := ageHours(p.CreatedAt, now)
	raw := float64(p.Likes-p.Dislikes)*r.cfg.TrendingNetLikeWeight +
		float64(p.Comments)*r.cfg.TrendingCommentWeight +
		r.cfg.TrendingBias
	return raw / math.Pow(age+1, r.cfg.TrendingDecayExponent)
}

// HotTakeScore favors controversial posts: high total reactions with a
// narrow like/dislike margin. The margin is floored to 1 so an even split
// never divides by zero.
func (r *Ranker) HotTakeScore(p Post, now time.Time) float64 {
	age := ageHours(p.CreatedAt, now)
	margin := p.Likes - p.Dislikes
	if margin < 0 {
		margin = -margin
	}
	if margin < 1 {
		margin = 1
	}
	raw := float64(p.Likes+p.Dislikes) / float64(margin)
	return raw / math.Pow(age+1, r.cfg.HotTakesDecayExponent)
}

// ReviewScore is a weighted engagement sum with exponential recency decay.
func (r *Ranker) ReviewScore(p Post, now time.Time) float64 {
	age := ageHours(p.CreatedAt, now)
	raw := r.cfg.ReviewLikeWeight*float64(p.Likes) +
		r.cfg.ReviewCommentWeight*float64(p.Comments) +
		r.cfg.ReviewReshareWeight*float64(p.Reshares) +
		r.cfg.ReviewViewWeight*float64(p.Views) -
		r.cfg.ReviewDislikeWeight*float64(p.Dislikes)
	return raw * math.Exp(-age/r.cfg.ReviewDecayHours)
}

func (r *Ranker) score(tab Tab, p Post, now time.Time) float64 {
	switch tab {
	case TabTrending:
		return r.TrendingScore(p, now)
	case TabHotTakes:
		return r.HotTakeScore(p, now)
	case TabReviews:
		return r.ReviewScore(p, now)
	}
	return 0
}

func (r *Ranker) eligible(tab Tab, p Post) bool {
	switch tab {
	case TabHotTakes:
		return p.Likes+p.Dislikes >= r.cfg.HotTakesMinReactions
	case TabReviews:
		return p.Kind == PostKindReview
	}
	return true
}

// RankPage scores the eligible posts in pool for the given tab, applies the
// cursor as a strict exclusive upper bound, and returns at most pageSize
// posts in descending score order. Ties break by createdAt descending, then
// id ascending, so the ordering is fully deterministic for a fixed snapshot
// of counts. The returned cursor is empty once no rows remain beyond the
// page.
func (r *Ranker) RankPage(tab Tab, pool []Post, cursor string, pageSize int, now time.Time) ([]ScoredPost, string, error) {
	var bound float64
	hasBound := false
	if cursor != "" {
		c, err := ParseCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		if c.Kind != CursorScore {
			return nil, "", fmt.Errorf("%w: not a score cursor", ErrBadCursor)
		}
		bound = c.Score
		hasBound = true
	}

	scored := make([]ScoredPost, 0, len(pool))
	for _, p := range pool {
		if !r.eligible(tab, p) {
			continue
		}
		score := r.score(tab, p, now)
		if hasBound && score >= bound {
			continue
		}
		scored = append(scored, ScoredPost{Post: p, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].CreatedAt.Equal(scored[j].CreatedAt) {
			return scored[i].CreatedAt.After(scored[j].CreatedAt)
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) <= pageSize {
		return scored, "", nil
	}

	page := scored[:pageSize]
	next := EncodeScoreCursor(page[len(page)-1].Score)
	return page, next, nil
}
