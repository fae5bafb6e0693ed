package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/queue"
	"geojungle/internal/repository"
)

// CatalogCascade deletes badges and achievements. The holder rows go first,
// in batches; the catalog row is removed only once nobody holds it. A
// cleanup that stops partway reports CascadeIncomplete and is queued for a
// worker to finish.
type CatalogCascade struct {
	badges       repository.BadgeRepository
	achievements repository.AchievementRepository
	publisher    queue.Publisher
	batchSize    int
	maxAttempts  int
}

func NewCatalogCascade(
	badges repository.BadgeRepository,
	achievements repository.AchievementRepository,
	publisher queue.Publisher,
	batchSize, maxAttempts int,
) *CatalogCascade {
	return &CatalogCascade{
		badges:       badges,
		achievements: achievements,
		publisher:    publisher,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
	}
}

func (c *CatalogCascade) repo(entity string) (repository.HolderCascade, error) {
	switch entity {
	case queue.EntityBadge:
		return c.badges, nil
	case queue.EntityAchievement:
		return c.achievements, nil
	default:
		return nil, fmt.Errorf("unknown cascade entity %q", entity)
	}
}

// Delete runs the cascade for one catalog entry. On CascadeIncomplete a
// first retry is queued before the error is returned.
func (c *CatalogCascade) Delete(ctx context.Context, entity string, id int64) error {
	err := c.run(ctx, entity, id)
	if model.KindOf(err) == model.KindCascadeIncomplete {
		c.scheduleRetry(ctx, entity, id, 1)
	}
	return err
}

// RetryCascade is the worker entry point. An entry that is already gone
// counts as done. Failed attempts are requeued until maxAttempts.
func (c *CatalogCascade) RetryCascade(ctx context.Context, entity string, id int64, attempt int) error {
	err := c.run(ctx, entity, id)
	switch {
	case err == nil:
		log.Printf("[CatalogCascade] %s %d deleted on attempt %d", entity, id, attempt)
		return nil
	case errors.Is(err, model.ErrNotFound):
		return nil
	case model.KindOf(err) != model.KindCascadeIncomplete:
		return err
	}

	if attempt >= c.maxAttempts {
		log.WithError(err).WithFields(log.Fields{"entity": entity, "id": id, "attempt": attempt}).
			Error("[CatalogCascade] Giving up; entry stays deactivated until deleted again")
		return nil
	}
	c.scheduleRetry(ctx, entity, id, attempt+1)
	return nil
}

func (c *CatalogCascade) run(ctx context.Context, entity string, id int64) error {
	repo, err := c.repo(entity)
	if err != nil {
		return err
	}
	fields := log.Fields{"entity": entity, "id": id}

	// Phase 1: no new awards from here on.
	if err := repo.Deactivate(ctx, id); err != nil {
		return err
	}

	// Phase 2: strip the id from every holder.
	var removed int64
	for {
		n, err := repo.RemoveHolders(ctx, id, c.batchSize)
		if err != nil {
			log.WithError(err).WithFields(fields).Error("[CatalogCascade] Holder cleanup failed")
			return model.CascadeIncomplete(fmt.Sprintf("%s holders could not all be removed", entity), err)
		}
		removed += n
		if n < int64(c.batchSize) {
			break
		}
	}

	// Phase 3: the catalog row goes only if the holder set is empty.
	deleted, err := repo.DeleteIfNoHolders(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		log.WithError(err).WithFields(fields).Error("[CatalogCascade] Final delete failed")
		return model.CascadeIncomplete(fmt.Sprintf("%s could not be deleted", entity), err)
	}
	if !deleted {
		log.WithFields(fields).Error("[CatalogCascade] Holders reappeared during cleanup")
		return model.CascadeIncomplete(fmt.Sprintf("%s still has holders", entity), nil)
	}

	log.WithFields(fields).WithField("holders_removed", removed).Info("[CatalogCascade] Cascade complete")
	return nil
}

func (c *CatalogCascade) scheduleRetry(ctx context.Context, entity string, id int64, attempt int) {
	if c.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if _, err := c.publisher.Publish(pubCtx, queue.StreamLedger, queue.NewCascadeRetryEvent(entity, id, attempt)); err != nil {
		log.WithError(err).WithFields(log.Fields{"entity": entity, "id": id}).
			Error("[CatalogCascade] Failed to queue cascade.retry")
	}
}
