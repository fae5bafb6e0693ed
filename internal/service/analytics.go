package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

const overviewTopPlayers = 5

// AnalyticsService serves the admin dashboard and repairs counter drift.
type AnalyticsService struct {
	tx          repository.SnapshotTransactor
	maintenance repository.MaintenanceRepository
	leaderboard *LeaderboardService
}

func NewAnalyticsService(tx repository.SnapshotTransactor, maintenance repository.MaintenanceRepository, leaderboard *LeaderboardService) *AnalyticsService {
	return &AnalyticsService{tx: tx, maintenance: maintenance, leaderboard: leaderboard}
}

func (s *AnalyticsService) Overview(ctx context.Context) (*model.Overview, error) {
	overview, err := s.maintenance.Overview(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.leaderboard.Top(ctx, overviewTopPlayers)
	if err != nil {
		return nil, err
	}
	overview.TopPlayers = top
	return overview, nil
}

// Reconcile recomputes every denormalized counter from its authoritative
// set in one snapshot transaction and reports how many rows had drifted.
// Live traffic keeps running; a counter that changes under the snapshot
// makes the transaction start over instead of being overwritten.
func (s *AnalyticsService) Reconcile(ctx context.Context) (*model.ReconcileReport, error) {
	startTime := time.Now()
	var report *model.ReconcileReport

	err := s.tx.InSnapshotTx(ctx, func(tx *sqlx.Tx) error {
		report = &model.ReconcileReport{}
		steps := []struct {
			dst *int64
			fn  func(context.Context, *sqlx.Tx) (int64, error)
		}{
			{&report.PostCounts, s.maintenance.ReconcilePostCounts},
			{&report.MemberCounts, s.maintenance.ReconcileMemberCounts},
			{&report.Engagement, s.maintenance.ReconcileEngagement},
			{&report.MiniAdminFlags, s.maintenance.ReconcileMiniAdminFlags},
			{&report.QuizzesCompleted, s.maintenance.ReconcileQuizzesCompleted},
		}
		for _, step := range steps {
			n, err := step.fn(ctx, tx)
			if err != nil {
				return err
			}
			*step.dst = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"post_counts":       report.PostCounts,
		"member_counts":     report.MemberCounts,
		"engagement":        report.Engagement,
		"mini_admin_flags":  report.MiniAdminFlags,
		"quizzes_completed": report.QuizzesCompleted,
		"duration":          time.Since(startTime),
	}
	if report.Total() > 0 {
		log.WithFields(fields).Warn("[Reconcile] Counter drift corrected")
	} else {
		log.WithFields(fields).Info("[Reconcile] No drift")
	}
	return report, nil
}

// RebuildLeaderboard rewrites the sorted set from Postgres.
func (s *AnalyticsService) RebuildLeaderboard(ctx context.Context) (int, error) {
	return s.leaderboard.Rebuild(ctx)
}
