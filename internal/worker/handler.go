package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/queue"
)

// LeaderboardSyncer copies a user's committed score into the leaderboard.
type LeaderboardSyncer interface {
	SyncUser(ctx context.Context, userID int64) error
}

// CascadeRetrier finishes a catalog delete whose holder cleanup stopped
// part way.
type CascadeRetrier interface {
	RetryCascade(ctx context.Context, entity string, id int64, attempt int) error
}

// Handler processes ledger follow-up events from the queue.
type Handler struct {
	leaderboard LeaderboardSyncer
	cascade     CascadeRetrier
}

func NewHandler(leaderboard LeaderboardSyncer, cascade CascadeRetrier) *Handler {
	return &Handler{
		leaderboard: leaderboard,
		cascade:     cascade,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.LedgerEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventLeaderboardSync:
		err = h.handleLeaderboardSync(ctx, event)
	case queue.EventCascadeRetry:
		err = h.handleCascadeRetry(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Debugf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

func (h *Handler) handleLeaderboardSync(ctx context.Context, event queue.LedgerEvent) error {
	if event.UserID <= 0 {
		return fmt.Errorf("leaderboard.sync without user_id")
	}
	if err := h.leaderboard.SyncUser(ctx, event.UserID); err != nil {
		return fmt.Errorf("sync user %d: %w", event.UserID, err)
	}
	log.Printf("[Worker] LeaderboardSync DONE: user=%d", event.UserID)
	return nil
}

// handleCascadeRetry runs one more pass of the delete. A further failure is
// rescheduled by the cascade itself with attempt+1, so the error here is
// only reported.
func (h *Handler) handleCascadeRetry(ctx context.Context, event queue.LedgerEvent) error {
	if event.EntityID <= 0 || event.Entity == "" {
		return fmt.Errorf("cascade.retry without entity")
	}
	attempt := event.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	if err := h.cascade.RetryCascade(ctx, event.Entity, event.EntityID, attempt); err != nil {
		return fmt.Errorf("retry %s %d (attempt %d): %w", event.Entity, event.EntityID, attempt, err)
	}
	log.Printf("[Worker] CascadeRetry DONE: %s=%d attempt=%d", event.Entity, event.EntityID, attempt)
	return nil
}
