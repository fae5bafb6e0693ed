package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/cache"
	"geojungle/internal/model"
	"geojungle/internal/queue"
	"geojungle/internal/repository"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// LeaderboardService keeps the Redis sorted set in step with users.score.
// Postgres is authoritative; every Redis failure degrades to a queued
// resync or a database read.
type LeaderboardService struct {
	userRepo  repository.UserRepository
	board     cache.Leaderboard
	publisher queue.Publisher
}

func NewLeaderboardService(userRepo repository.UserRepository, board cache.Leaderboard, publisher queue.Publisher) *LeaderboardService {
	return &LeaderboardService{userRepo: userRepo, board: board, publisher: publisher}
}

// Record copies userID's committed score into the ranking. The score is read
// again after commit rather than taken from the transaction, so two plays
// finishing out of order cannot leave the older total in Redis. On failure a
// leaderboard.sync event is queued and a PartialSuccess error is returned for
// the caller to surface.
func (s *LeaderboardService) Record(ctx context.Context, userID int64) error {
	err := s.SyncUser(ctx, userID)
	if err == nil {
		return nil
	}
	s.queueSync(ctx, userID, err)
	return model.PartialSuccess("score saved; leaderboard update is pending", err)
}

// Forget drops a deleted user from the ranking.
func (s *LeaderboardService) Forget(ctx context.Context, userID int64) error {
	err := s.board.Remove(ctx, userID)
	if err == nil {
		return nil
	}
	s.queueSync(ctx, userID, err)
	return model.PartialSuccess("user deleted; leaderboard removal is pending", err)
}

func (s *LeaderboardService) queueSync(ctx context.Context, userID int64, cause error) {
	log.WithError(cause).WithField("user_id", userID).Warn("[LeaderboardService] Leaderboard write failed; queueing resync")

	if s.publisher == nil {
		return
	}
	// The request context may be the reason the write failed.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if _, err := s.publisher.Publish(pubCtx, queue.StreamLedger, queue.NewLeaderboardSyncEvent(userID)); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("[LeaderboardService] Failed to queue leaderboard.sync; the next rebuild will repair it")
	}
}

// SyncUser copies one user's score from Postgres into the sorted set, or
// removes the member when the user no longer exists.
func (s *LeaderboardService) SyncUser(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return s.board.Remove(ctx, userID)
	}
	if err != nil {
		return err
	}
	return s.board.SetScore(ctx, userID, user.Score)
}

// Top reads the ranking from Redis and falls back to Postgres when Redis
// is unavailable.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	entries, err := s.board.Top(ctx, limit)
	if err != nil {
		log.WithError(err).Warn("[LeaderboardService] Redis unavailable; reading scores from Postgres")
		return s.userRepo.Scores(ctx, limit)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	summaries, err := s.userRepo.GetSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Username = summaries[entries[i].UserID].Username
	}
	return entries, nil
}

// Rebuild replaces the sorted set with every user's current score.
func (s *LeaderboardService) Rebuild(ctx context.Context) (int, error) {
	entries, err := s.userRepo.Scores(ctx, 0)
	if err != nil {
		return 0, err
	}
	if err := s.board.Rebuild(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
