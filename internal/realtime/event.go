package realtime

import "time"

// streamEvent is the raw JSON structure from the backend's realtime channel.
type streamEvent struct {
	Seq     int64            `json:"seq"`
	Kind    string           `json:"kind"`
	Post    *postEvent       `json:"post,omitempty"`
	Counts  *engagementEvent `json:"counts,omitempty"`
	Deleted string           `json:"deleted,omitempty"`
}

// postEvent is the payload of a post_created event.
type postEvent struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// kind-specific fields, present depending on Kind
	ShowID   string `json:"show_id,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
	Stars    int    `json:"stars,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// engagementEvent is the payload of an engagement event: a full counter
// snapshot for one post.
type engagementEvent struct {
	PostID   string `json:"post_id"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Comments int    `json:"comments"`
	Reshares int    `json:"reshares"`
	Views    int    `json:"views"`
}
