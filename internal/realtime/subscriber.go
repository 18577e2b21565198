package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/NoahAinsworth/serialbowl/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	cursorStreamName   = "posts"
	cursorSaveInterval = 5 * time.Second
)

// wantedChannels is the set of channels this subscriber requests from the
// backend's realtime endpoint. Post lifecycle and reaction counters are all
// the feed pool needs.
var wantedChannels = []string{
	"posts",
	"engagement",
}

// Subscriber connects to the backend's realtime channel and mirrors post
// and engagement events into the feed pool.
type Subscriber struct {
	url         string
	feedService *domain.FeedService
	logger      *slog.Logger
}

// NewSubscriber creates a new realtime subscriber.
func NewSubscriber(realtimeURL string, feedService *domain.FeedService, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:         realtimeURL,
		feedService: feedService,
		logger:      logger,
	}
}

// Start connects to the realtime channel and processes events until the
// context is cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("realtime connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for _, c := range wantedChannels {
		q.Add("channels", c)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.feedService.GetStreamCursor(ctx, cursorStreamName)
	if err != nil {
		s.logger.Warn("failed to load stream cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to realtime channel", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial realtime channel: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to realtime channel")

	lastCursorSave := time.Now()
	var latestCursor int64
	var eventsReceived, postsApplied int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event streamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		latestCursor = event.Seq

		if applied, err := s.handleEvent(ctx, &event); err != nil {
			s.logger.Error("failed to handle event", "kind", event.Kind, "error", err)
		} else if applied {
			postsApplied++
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("realtime stats",
				"events_received", eventsReceived,
				"posts_applied", postsApplied,
			)
			lastStatsLog = time.Now()
		}

		// Periodically save cursor
		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.feedService.UpdateStreamCursor(ctx, cursorStreamName, latestCursor); err != nil {
				s.logger.Error("failed to save stream cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event *streamEvent) (applied bool, err error) {
	switch event.Kind {
	case "post_created":
		if event.Post == nil {
			return false, nil
		}
		post, err := toDomainPost(event.Post)
		if err != nil {
			return false, err
		}
		if err := s.feedService.ApplyPostCreated(ctx, post); err != nil {
			return false, err
		}
		return true, nil

	case "post_deleted":
		if event.Deleted == "" {
			return false, nil
		}
		return false, s.feedService.ApplyPostDeleted(ctx, event.Deleted)

	case "engagement":
		if event.Counts == nil {
			return false, nil
		}
		counts := domain.EngagementCounts{
			Likes:    event.Counts.Likes,
			Dislikes: event.Counts.Dislikes,
			Comments: event.Counts.Comments,
			Reshares: event.Counts.Reshares,
			Views:    event.Counts.Views,
		}
		return true, s.feedService.ApplyEngagement(ctx, event.Counts.PostID, counts)

	default:
		return false, nil
	}
}

func toDomainPost(ev *postEvent) (*domain.Post, error) {
	kind := domain.PostKind(ev.Kind)

	var body domain.PostBody
	switch kind {
	case domain.PostKindThought:
		body = domain.ThoughtBody{}
	case domain.PostKindReview:
		body = domain.ReviewBody{ShowID: ev.ShowID, Rating: ev.Rating}
	case domain.PostKindRating:
		body = domain.RatingBody{ShowID: ev.ShowID, Season: ev.Season, Episode: ev.Episode, Stars: ev.Stars}
	case domain.PostKindVideo:
		body = domain.VideoBody{ShowID: ev.ShowID, URL: ev.VideoURL}
	default:
		return nil, fmt.Errorf("unknown post kind %q", ev.Kind)
	}

	return &domain.Post{
		ID:        ev.ID,
		AuthorID:  ev.AuthorID,
		Kind:      kind,
		Text:      ev.Text,
		CreatedAt: ev.CreatedAt,
		Body:      body,
	}, nil
}
