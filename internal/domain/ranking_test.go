package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func postAgedHours(id string, age float64, likes, dislikes, comments int) Post {
	return Post{
		ID:        id,
		AuthorID:  "author-1",
		Kind:      PostKindThought,
		Likes:     likes,
		Dislikes:  dislikes,
		Comments:  comments,
		CreatedAt: testNow.Add(-time.Duration(age * float64(time.Hour))),
		Body:      ThoughtBody{},
	}
}

func TestTrendingScoreValue(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	// ((10-2)*1.7 + 5*1.2 + 3) / (0+1)^1.25 = 22.6
	p := postAgedHours("p1", 0, 10, 2, 5)
	assert.InDelta(t, 22.6, r.TrendingScore(p, testNow), 1e-9)
}

func TestTrendingScoreDeterministic(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	a := postAgedHours("a", 3, 7, 1, 4)
	b := postAgedHours("b", 3, 7, 1, 4)
	assert.Equal(t, r.TrendingScore(a, testNow), r.TrendingScore(b, testNow))
}

func TestTrendingScoreDecaysWithAge(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	prev := r.TrendingScore(postAgedHours("p", 0, 20, 2, 10), testNow)
	for age := 1.0; age <= 48; age++ {
		score := r.TrendingScore(postAgedHours("p", age, 20, 2, 10), testNow)
		require.Less(t, score, prev, "score must strictly decrease at age %v", age)
		prev = score
	}
}

func TestNegativeAgeClampedToZero(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	future := postAgedHours("p", -2, 10, 0, 0)
	now := postAgedHours("p", 0, 10, 0, 0)
	assert.Equal(t, r.TrendingScore(now, testNow), r.TrendingScore(future, testNow))
}

func TestHotTakeScoreEvenSplit(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	// likes == dislikes floors the margin to 1: (3+3)/1 / 1^1.1 = 6
	p := postAgedHours("p", 0, 3, 3, 0)
	assert.InDelta(t, 6.0, r.HotTakeScore(p, testNow), 1e-9)
}

func TestHotTakesEligibilityFilter(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	pool := []Post{
		postAgedHours("low", 0, 2, 2, 0),  // 4 reactions, below threshold
		postAgedHours("high", 0, 3, 2, 0), // 5 reactions
	}

	page, next, err := r.RankPage(TabHotTakes, pool, "", DefaultPageSize, testNow)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "high", page[0].ID)
	assert.Empty(t, next)
}

func TestReviewsEligibilityFilter(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	review := postAgedHours("review", 0, 5, 0, 0)
	review.Kind = PostKindReview
	review.Body = ReviewBody{ShowID: "show-1", Rating: 8}

	pool := []Post{
		postAgedHours("thought", 0, 50, 0, 10),
		review,
	}

	page, _, err := r.RankPage(TabReviews, pool, "", DefaultPageSize, testNow)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "review", page[0].ID)
}

func TestReviewScoreValue(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	// (3*2 + 4*1 + 5*1 + 0.25*8 - 6*0) * e^0 = 17
	p := Post{
		ID:        "p",
		Kind:      PostKindReview,
		Likes:     2,
		Comments:  1,
		Reshares:  1,
		Views:     8,
		CreatedAt: testNow,
	}
	assert.InDelta(t, 17.0, r.ReviewScore(p, testNow), 1e-9)
}

func TestRankPageOrdering(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	older := postAgedHours("older", 2, 5, 0, 0)
	newer := postAgedHours("newer", 1, 5, 0, 0)
	// Same timestamp and counts as newer, distinct id: tie breaks by id asc.
	twinA := postAgedHours("twin-a", 1, 5, 0, 0)
	twinB := postAgedHours("twin-b", 1, 5, 0, 0)

	page, _, err := r.RankPage(TabTrending, []Post{older, twinB, newer, twinA}, "", DefaultPageSize, testNow)
	require.NoError(t, err)
	require.Len(t, page, 4)

	assert.Equal(t, "newer", page[0].ID)
	assert.Equal(t, "twin-a", page[1].ID)
	assert.Equal(t, "twin-b", page[2].ID)
	assert.Equal(t, "older", page[3].ID)
}

func TestRankPagePagination(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	// 50 posts with distinct engagement so all scores differ.
	pool := make([]Post, 50)
	for i := range pool {
		pool[i] = postAgedHours(fmt.Sprintf("p%02d", i), 1, i+1, 0, i%7)
	}

	seen := make(map[string]bool)
	cursor := ""
	var pages int
	for {
		page, next, err := r.RankPage(TabTrending, pool, cursor, DefaultPageSize, testNow)
		require.NoError(t, err)
		pages++

		for i, p := range page {
			require.False(t, seen[p.ID], "post %s returned twice", p.ID)
			seen[p.ID] = true
			if i > 0 {
				require.LessOrEqual(t, p.Score, page[i-1].Score)
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 50, "every post must be returned exactly once")
}

func TestRankPageCursorIsStrictBound(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	pool := make([]Post, 25)
	for i := range pool {
		pool[i] = postAgedHours(fmt.Sprintf("p%02d", i), 1, i+1, 0, 0)
	}

	first, next, err := r.RankPage(TabTrending, pool, "", DefaultPageSize, testNow)
	require.NoError(t, err)
	require.NotEmpty(t, next)

	second, _, err := r.RankPage(TabTrending, pool, next, DefaultPageSize, testNow)
	require.NoError(t, err)

	boundary := first[len(first)-1].Score
	for _, p := range second {
		assert.Less(t, p.Score, boundary)
	}
}

func TestRankPageNoCursorWhenExhausted(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	pool := []Post{
		postAgedHours("a", 0, 2, 1, 0),
		postAgedHours("b", 0, 9, 1, 3),
	}

	page, next, err := r.RankPage(TabTrending, pool, "", DefaultPageSize, testNow)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}

func TestRankPageRejectsTimeCursor(t *testing.T) {
	r := NewRanker(DefaultRankingConfig())

	_, _, err := r.RankPage(TabTrending, nil, EncodeTimeCursor(testNow, "p1"), DefaultPageSize, testNow)
	require.ErrorIs(t, err, ErrBadCursor)
}

func TestParseTab(t *testing.T) {
	for _, name := range []string{"trending", "hot-takes", "reviews", "new", "following"} {
		tab, err := ParseTab(name)
		require.NoError(t, err)
		assert.Equal(t, Tab(name), tab)
	}

	_, err := ParseTab("spicy")
	assert.Error(t, err)
}
