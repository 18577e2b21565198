package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Points tuning. These match the values enforced by the production backend.
const (
	// MaxBatchEpisodes is the largest batch that can earn points (Rule A).
	MaxBatchEpisodes = 15
	// MaxBatchesPerHour is the rate limit on point-earning batches (Rule C).
	MaxBatchesPerHour = 5
	// PointsPerEpisode is the base award per episode.
	PointsPerEpisode = 10
	// SeasonBonusPoints is awarded when a batch completes its season.
	SeasonBonusPoints = 50
	// ShowBonusPoints is awarded when a batch completes the entire show.
	ShowBonusPoints = 200
	// DailyPointsCap is the most a user can earn per calendar day.
	DailyPointsCap = 200
	// BulkBatchThreshold marks a batch as bulk in the audit log.
	BulkBatchThreshold = 5
)

// EpisodeRef identifies a single episode as show:season:episode.
type EpisodeRef struct {
	ShowID  string
	Season  int
	Episode int
}

// ParseEpisodeRef parses a "showID:seasonNumber:episodeNumber" identifier.
func ParseEpisodeRef(s string) (EpisodeRef, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return EpisodeRef{}, fmt.Errorf("episode id %q: want 3 segments, got %d", s, len(parts))
	}
	if parts[0] == "" {
		return EpisodeRef{}, fmt.Errorf("episode id %q: empty show id", s)
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil {
		return EpisodeRef{}, fmt.Errorf("episode id %q: invalid season number: %w", s, err)
	}
	episode, err := strconv.Atoi(parts[2])
	if err != nil {
		return EpisodeRef{}, fmt.Errorf("episode id %q: invalid episode number: %w", s, err)
	}
	return EpisodeRef{ShowID: parts[0], Season: season, Episode: episode}, nil
}

func (r EpisodeRef) String() string {
	return fmt.Sprintf("%s:%d:%d", r.ShowID, r.Season, r.Episode)
}

// WatchBatch is a user's submission of episodes to mark watched.
type WatchBatch struct {
	UserID     string
	ShowID     string
	ShowTitle  string
	EpisodeIDs []string

	// EarnPoints is false when the user is logging history retroactively
	// and does not want the batch scored.
	EarnPoints bool
}

// DenialRule names the anti-cheat rule that rejected a batch.
type DenialRule string

const (
	DenyBatchSize   DenialRule = "batch_size"
	DenyMultiSeason DenialRule = "multi_season"
	DenyRateLimit   DenialRule = "rate_limit"
)

// AntiCheatVerdict records whether a batch was denied points and by which
// rule. A denial zeroes the award but never blocks the history write.
type AntiCheatVerdict struct {
	Denied bool
	Rule   DenialRule
}

// EvaluateAntiCheat runs the fraud heuristics over a parsed batch. Rules
// short-circuit in order: batch size, season homogeneity, rate limit.
// recentBatches is the number of batches the user logged in the trailing
// hour.
func EvaluateAntiCheat(refs []EpisodeRef, recentBatches int) AntiCheatVerdict {
	if len(refs) > MaxBatchEpisodes {
		return AntiCheatVerdict{Denied: true, Rule: DenyBatchSize}
	}
	for i := 1; i < len(refs); i++ {
		if refs[i].Season != refs[0].Season {
			return AntiCheatVerdict{Denied: true, Rule: DenyMultiSeason}
		}
	}
	if recentBatches >= MaxBatchesPerHour {
		return AntiCheatVerdict{Denied: true, Rule: DenyRateLimit}
	}
	return AntiCheatVerdict{}
}

// UserPointsState mirrors the persisted per-user point counters.
type UserPointsState struct {
	DailyPointsEarned int
	DailyResetAt      time.Time
	TotalBingePoints  int
	ShowScore         int
}

// DailyEarnedAt returns the daily counter with the calendar-day reset
// applied: if the stored reset stamp is not the same calendar date as now,
// the counter starts over at zero regardless of its stored value.
func (s UserPointsState) DailyEarnedAt(now time.Time) int {
	if !sameCalendarDay(s.DailyResetAt, now) {
		return 0
	}
	return s.DailyPointsEarned
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AwardInput is everything the points calculation needs.
type AwardInput struct {
	EpisodeCount   int
	SeasonComplete bool
	ShowComplete   bool
	// DailyEarned is the user's daily counter after the reset check.
	DailyEarned int
}

// Award is the result of the points calculation.
type Award struct {
	// Points is the clamped total actually granted.
	Points int
	// SeasonBonus and ShowBonus are the raw bonus components, before the
	// daily cap clamp.
	SeasonBonus int
	ShowBonus   int
	// CapReached is true when the daily counter is at the cap after this
	// award.
	CapReached bool
}

// ComputeAward computes base points plus completion bonuses and clamps the
// total to the user's remaining daily allowance.
func ComputeAward(in AwardInput) Award {
	var a Award
	total := in.EpisodeCount * PointsPerEpisode
	if in.SeasonComplete {
		a.SeasonBonus = SeasonBonusPoints
		total += SeasonBonusPoints
	}
	if in.ShowComplete {
		a.ShowBonus = ShowBonusPoints
		total += ShowBonusPoints
	}

	remaining := DailyPointsCap - in.DailyEarned
	if remaining < 0 {
		remaining = 0
	}
	if total > remaining {
		total = remaining
	}
	a.Points = total
	a.CapReached = in.DailyEarned+total >= DailyPointsCap
	return a
}

// PointsLogEntry is one audit row per submitted batch. The same table
// backs the Rule C rate limit.
type PointsLogEntry struct {
	ID           string
	UserID       string
	ShowID       string
	EpisodeCount int
	Points       int
	SeasonBonus  bool
	ShowBonus    bool
	Bulk         bool
	Denied       bool
	DenialRule   DenialRule
	CreatedAt    time.Time
}

// WatchResult is the per-batch summary returned to the client.
type WatchResult struct {
	PointsEarned    int
	ShowScoreAdded  int
	SeasonBonus     int
	ShowBonus       int
	DailyCapReached bool
	AntiCheatDenied bool
}
