package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PointsService processes watch batches: it runs the anti-cheat rules,
// records watch history, computes the point award, and appends the audit
// log row. One invocation per request, no retained state.
type PointsService struct {
	watches WatchRepository
	points  PointsRepository
	catalog CatalogRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewPointsService creates a PointsService.
func NewPointsService(watches WatchRepository, points PointsRepository, catalog CatalogRepository, logger *slog.Logger) *PointsService {
	return &PointsService{
		watches: watches,
		points:  points,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// SubmitWatchBatch evaluates one batch end to end. History is written even
// when anti-cheat denies the award; history-logging and point-earning are
// independent concerns. Malformed episode ids are skipped with a warning
// rather than aborting the batch.
func (s *PointsService) SubmitWatchBatch(ctx context.Context, batch WatchBatch) (*WatchResult, error) {
	refs := make([]EpisodeRef, 0, len(batch.EpisodeIDs))
	for _, raw := range batch.EpisodeIDs {
		ref, err := ParseEpisodeRef(raw)
		if err != nil {
			s.logger.Warn("skipping malformed episode id", "user", batch.UserID, "episode_id", raw, "error", err)
			continue
		}
		refs = append(refs, ref)
	}

	now := s.now()

	// The rate-limit read and the log append below are not transactional,
	// so concurrent batches from one user can race past the threshold.
	// Enforcement is best-effort.
	var verdict AntiCheatVerdict
	if batch.EarnPoints {
		recent, err := s.points.CountBatchesSince(ctx, batch.UserID, now.Add(-time.Hour))
		if err != nil {
			return nil, fmt.Errorf("count recent batches: %w", err)
		}
		verdict = EvaluateAntiCheat(refs, recent)
		if verdict.Denied {
			s.logger.Info("anti-cheat denied batch", "user", batch.UserID, "rule", verdict.Rule, "episodes", len(refs))
		}
	}

	added := 0
	for _, ref := range refs {
		inserted, err := s.watches.MarkWatched(ctx, batch.UserID, ref)
		if err != nil {
			return nil, fmt.Errorf("mark watched %s: %w", ref, err)
		}
		if inserted {
			added++
		}
	}

	result := &WatchResult{
		ShowScoreAdded:  added,
		AntiCheatDenied: verdict.Denied,
	}

	if batch.EarnPoints && !verdict.Denied && len(refs) > 0 {
		if err := s.award(ctx, batch.UserID, refs, added, now, result); err != nil {
			return nil, err
		}
	}

	entry := PointsLogEntry{
		ID:           uuid.NewString(),
		UserID:       batch.UserID,
		ShowID:       batch.ShowID,
		EpisodeCount: len(refs),
		Points:       result.PointsEarned,
		SeasonBonus:  result.SeasonBonus > 0,
		ShowBonus:    result.ShowBonus > 0,
		Bulk:         len(refs) > BulkBatchThreshold,
		Denied:       verdict.Denied,
		DenialRule:   verdict.Rule,
		CreatedAt:    now,
	}
	if err := s.points.AppendLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("append points log: %w", err)
	}

	return result, nil
}

func (s *PointsService) award(ctx context.Context, userID string, refs []EpisodeRef, added int, now time.Time, result *WatchResult) error {
	showID, season := refs[0].ShowID, refs[0].Season

	seasonDone, showDone, err := s.completionStatus(ctx, userID, showID, season)
	if err != nil {
		return err
	}

	state, err := s.points.GetState(ctx, userID)
	if err != nil {
		return fmt.Errorf("get points state: %w", err)
	}

	award := ComputeAward(AwardInput{
		EpisodeCount:   len(refs),
		SeasonComplete: seasonDone,
		ShowComplete:   showDone,
		DailyEarned:    state.DailyEarnedAt(now),
	})

	if err := s.points.AddPoints(ctx, userID, award.Points, added, now); err != nil {
		return fmt.Errorf("add points: %w", err)
	}

	result.PointsEarned = award.Points
	result.SeasonBonus = award.SeasonBonus
	result.ShowBonus = award.ShowBonus
	result.DailyCapReached = award.CapReached
	return nil
}

// completionStatus compares the user's watched counts after this batch
// against the catalog's episode counts. A season or show missing from the
// catalog never completes.
func (s *PointsService) completionStatus(ctx context.Context, userID, showID string, season int) (seasonDone, showDone bool, err error) {
	watchedSeason, err := s.watches.CountWatchedSeason(ctx, userID, showID, season)
	if err != nil {
		return false, false, fmt.Errorf("count watched season: %w", err)
	}
	seasonTotal, err := s.catalog.SeasonEpisodeCount(ctx, showID, season)
	if err != nil {
		return false, false, fmt.Errorf("season episode count: %w", err)
	}
	seasonDone = seasonTotal > 0 && watchedSeason >= seasonTotal

	watchedShow, err := s.watches.CountWatchedShow(ctx, userID, showID)
	if err != nil {
		return false, false, fmt.Errorf("count watched show: %w", err)
	}
	showTotal, err := s.catalog.ShowEpisodeCount(ctx, showID)
	if err != nil {
		return false, false, fmt.Errorf("show episode count: %w", err)
	}
	showDone = showTotal > 0 && watchedShow >= showTotal

	return seasonDone, showDone, nil
}

// StartLogPruneJob runs a background loop that trims audit rows older than
// maxAge. It runs immediately on start and then repeats at the given
// interval. It blocks until ctx is cancelled.
func (s *PointsService) StartLogPruneJob(ctx context.Context, interval, maxAge time.Duration) {
	s.runPrune(ctx, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPrune(ctx, maxAge)
		}
	}
}

func (s *PointsService) runPrune(ctx context.Context, maxAge time.Duration) {
	deleted, err := s.points.PruneLog(ctx, maxAge)
	if err != nil {
		s.logger.Error("points log prune failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("points log prune complete", "deleted", deleted)
	}
}
