// Package jobs runs the periodic maintenance tasks: counter reconciliation,
// leaderboard rebuild and refresh token cleanup.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
)

// TokenRetention is how long expired or revoked refresh tokens are kept.
const TokenRetention = 7 * 24 * time.Hour

// jobTimeout bounds a single run so a stuck query cannot pile up runs.
const jobTimeout = 10 * time.Minute

type Reconciler interface {
	Reconcile(ctx context.Context) (*model.ReconcileReport, error)
	RebuildLeaderboard(ctx context.Context) (int, error)
}

type TokenCleaner interface {
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Schedule holds standard five-field cron specs. An empty spec disables
// that job.
type Schedule struct {
	Reconcile    string
	Leaderboard  string
	TokenCleanup string
}

type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	tokens     TokenCleaner
	schedule   Schedule
}

func NewScheduler(reconciler Reconciler, tokens TokenCleaner, schedule Schedule) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		tokens:     tokens,
		schedule:   schedule,
	}
}

// Start registers the jobs and starts the cron loop. Jobs run with a
// context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"reconcile", s.schedule.Reconcile, s.RunReconcile},
		{"leaderboard", s.schedule.Leaderboard, s.RunLeaderboardRebuild},
		{"token-cleanup", s.schedule.TokenCleanup, s.RunTokenCleanup},
	}

	for _, job := range jobs {
		if job.spec == "" {
			log.Infof("[CRON] %s disabled", job.name)
			continue
		}
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if err := job.run(runCtx); err != nil {
				log.WithError(err).Errorf("[CRON] %s failed", job.name)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	log.Info("[CRON] Scheduler started (UTC)")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("[CRON] Scheduler stopped")
}

func (s *Scheduler) RunReconcile(ctx context.Context) error {
	log.Info("[CRON] Reconciling counters")
	_, err := s.reconciler.Reconcile(ctx)
	return err
}

func (s *Scheduler) RunLeaderboardRebuild(ctx context.Context) error {
	n, err := s.reconciler.RebuildLeaderboard(ctx)
	if err != nil {
		return err
	}
	log.Debugf("[CRON] Leaderboard rebuilt with %d users", n)
	return nil
}

func (s *Scheduler) RunTokenCleanup(ctx context.Context) error {
	n, err := s.tokens.CleanupExpired(ctx, TokenRetention)
	if err != nil {
		return err
	}
	log.Infof("[CRON] Removed %d stale refresh tokens", n)
	return nil
}
