package domain

import "time"

// PostKind distinguishes the content types users publish.
type PostKind string

const (
	PostKindThought PostKind = "thought"
	PostKindReview  PostKind = "review"
	PostKindRating  PostKind = "rating"
	PostKindVideo   PostKind = "video"
)

// Post represents a published post together with its current engagement
// counts. Counts are owned by the reaction endpoints; this service only
// reads them.
type Post struct {
	ID        string
	AuthorID  string
	Kind      PostKind
	Text      string
	Likes     int
	Dislikes  int
	Comments  int
	Reshares  int
	Views     int
	CreatedAt time.Time

	// Body carries the kind-specific payload. Its concrete type always
	// matches Kind.
	Body PostBody
}

// PostBody is the kind-specific payload of a post. Exactly one concrete
// type exists per PostKind.
type PostBody interface {
	isPostBody()
}

// ThoughtBody is the payload of a free-form thought post.
type ThoughtBody struct{}

// ReviewBody is the payload of a show review.
type ReviewBody struct {
	ShowID string
	Rating int
}

// RatingBody is the payload of a quick episode rating.
type RatingBody struct {
	ShowID  string
	Season  int
	Episode int
	Stars   int
}

// VideoBody is the payload of a video post.
type VideoBody struct {
	ShowID string
	URL    string
}

func (ThoughtBody) isPostBody() {}
func (ReviewBody) isPostBody()  {}
func (RatingBody) isPostBody()  {}
func (VideoBody) isPostBody()   {}

// EngagementCounts is a snapshot of a post's reaction counters as reported
// by the backend's realtime channel.
type EngagementCounts struct {
	Likes    int
	Dislikes int
	Comments int
	Reshares int
	Views    int
}

// ScoredPost is a Post plus its computed relevance score. Scores are
// recomputed per request and never stored.
type ScoredPost struct {
	Post
	Score float64
}
