package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NoahAinsworth/serialbowl/internal/auth"
	"github.com/NoahAinsworth/serialbowl/internal/config"
	"github.com/NoahAinsworth/serialbowl/internal/domain"
)

// Server is the HTTP server serving the feed and watch-batch endpoints.
type Server struct {
	cfg        *config.Config
	feeds      *domain.FeedService
	points     *domain.PointsService
	verifier   *auth.Verifier
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, feeds *domain.FeedService, points *domain.PointsService, verifier *auth.Verifier, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		feeds:    feeds,
		points:   points,
		verifier: verifier,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/feed", s.handleGetFeed)
	mux.HandleFunc("POST /api/watch-batches", s.handleWatchBatch)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller extracts the authenticated user from the Authorization header.
// Returns ("", nil) when no token is present.
func (s *Server) caller(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", auth.ErrInvalidToken
	}
	return s.verifier.Verify(token, time.Now())
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	tab, err := domain.ParseTab(r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "tab must be one of trending, hot-takes, reviews, new, following")
		return
	}

	limit := domain.DefaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > domain.MaxPageSize {
			writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("limit must be between 1 and %d", domain.MaxPageSize))
			return
		}
		limit = parsed
	}

	// An absent token on a personalized tab yields an empty page, but a
	// token that fails verification is rejected outright.
	viewer, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "invalid bearer token")
		return
	}

	page, err := s.feeds.GetFeed(r.Context(), domain.FeedRequest{
		Tab:      tab,
		ViewerID: viewer,
		Limit:    limit,
		Cursor:   r.URL.Query().Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrBadCursor) {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
			return
		}
		s.logger.Error("failed to get feed", "tab", tab, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	resp := feedResponse{
		Posts:      make([]postResponse, len(page.Posts)),
		NextCursor: page.NextCursor,
	}
	for i, p := range page.Posts {
		resp.Posts[i] = toPostResponse(p, tab.Scored())
	}
	writeJSON(w, http.StatusOK, resp)
}

type watchBatchRequest struct {
	UserID     string   `json:"user_id"`
	ShowID     string   `json:"show_id"`
	ShowTitle  string   `json:"show_title"`
	EpisodeIDs []string `json:"episode_ids"`
	EarnPoints bool     `json:"earn_points"`
}

type watchBatchResponse struct {
	PointsEarned    int  `json:"points_earned"`
	ShowScoreAdded  int  `json:"show_score_added"`
	SeasonBonus     int  `json:"season_bonus"`
	ShowBonus       int  `json:"show_bonus"`
	DailyCapReached bool `json:"daily_cap_reached"`
	AntiCheatDenied bool `json:"anti_cheat_denied"`
}

func (s *Server) handleWatchBatch(w http.ResponseWriter, r *http.Request) {
	var req watchBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed request body")
		return
	}
	if req.UserID == "" || req.ShowID == "" || len(req.EpisodeIDs) == 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "user_id, show_id and episode_ids are required")
		return
	}

	caller, err := s.caller(r)
	if err != nil || caller == "" {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "a valid bearer token is required")
		return
	}
	if caller != req.UserID {
		writeError(w, http.StatusForbidden, "Forbidden", "token does not match user_id")
		return
	}

	result, err := s.points.SubmitWatchBatch(r.Context(), domain.WatchBatch{
		UserID:     req.UserID,
		ShowID:     req.ShowID,
		ShowTitle:  req.ShowTitle,
		EpisodeIDs: req.EpisodeIDs,
		EarnPoints: req.EarnPoints,
	})
	if err != nil {
		s.logger.Error("failed to process watch batch", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to process watch batch")
		return
	}

	writeJSON(w, http.StatusOK, watchBatchResponse{
		PointsEarned:    result.PointsEarned,
		ShowScoreAdded:  result.ShowScoreAdded,
		SeasonBonus:     result.SeasonBonus,
		ShowBonus:       result.ShowBonus,
		DailyCapReached: result.DailyCapReached,
		AntiCheatDenied: result.AntiCheatDenied,
	})
}

type feedResponse struct {
	Posts      []postResponse `json:"posts"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type postResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Comments  int       `json:"comments"`
	Reshares  int       `json:"reshares"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	Score     *float64  `json:"score,omitempty"`

	Review *reviewPayload `json:"review,omitempty"`
	Rating *ratingPayload `json:"rating,omitempty"`
	Video  *videoPayload  `json:"video,omitempty"`
}

type reviewPayload struct {
	ShowID string `json:"show_id"`
	Rating int    `json:"rating"`
}

type ratingPayload struct {
	ShowID  string `json:"show_id"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Stars   int    `json:"stars"`
}

type videoPayload struct {
	ShowID string `json:"show_id"`
	URL    string `json:"url"`
}

func toPostResponse(p domain.ScoredPost, scored bool) postResponse {
	resp := postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Kind:      string(p.Kind),
		Text:      p.Text,
		Likes:     p.Likes,
		Dislikes:  p.Dislikes,
		Comments:  p.Comments,
		Reshares:  p.Reshares,
		Views:     p.Views,
		CreatedAt: p.CreatedAt,
	}
	if scored {
		score := p.Score
		resp.Score = &score
	}

	switch b := p.Body.(type) {
	case domain.ThoughtBody:
		// no extra payload
	case domain.ReviewBody:
		resp.Review = &reviewPayload{ShowID: b.ShowID, Rating: b.Rating}
	case domain.RatingBody:
		resp.Rating = &ratingPayload{ShowID: b.ShowID, Season: b.Season, Episode: b.Episode, Stars: b.Stars}
	case domain.VideoBody:
		resp.Video = &videoPayload{ShowID: b.ShowID, URL: b.URL}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
