package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

// EngagementService applies like/dislike transitions. Each transition runs
// under the post row lock, so the reaction row and the counters always move
// together.
type EngagementService struct {
	tx       repository.Transactor
	postRepo repository.PostRepository
}

func NewEngagementService(tx repository.Transactor, postRepo repository.PostRepository) *EngagementService {
	return &EngagementService{tx: tx, postRepo: postRepo}
}

func (s *EngagementService) Like(ctx context.Context, postID, userID int64) (*model.EngagementResult, error) {
	return s.apply(ctx, postID, userID, model.ActionLike)
}

func (s *EngagementService) Dislike(ctx context.Context, postID, userID int64) (*model.EngagementResult, error) {
	return s.apply(ctx, postID, userID, model.ActionDislike)
}

func (s *EngagementService) Unlike(ctx context.Context, postID, userID int64) (*model.EngagementResult, error) {
	return s.apply(ctx, postID, userID, model.ActionUnlike)
}

func (s *EngagementService) Undislike(ctx context.Context, postID, userID int64) (*model.EngagementResult, error) {
	return s.apply(ctx, postID, userID, model.ActionUndislike)
}

func (s *EngagementService) apply(ctx context.Context, postID, userID int64, action model.ReactionAction) (*model.EngagementResult, error) {
	if userID <= 0 {
		return nil, model.ErrIdentityRequired
	}

	var result *model.EngagementResult
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		post, err := s.postRepo.GetForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return model.ErrPostNotFound
		}

		current, err := s.postRepo.GetReaction(ctx, tx, postID, userID)
		if err != nil {
			return err
		}

		t, err := model.NextReaction(current, action)
		if err != nil {
			return err
		}

		if err := s.postRepo.SetReaction(ctx, tx, postID, userID, t.Next); err != nil {
			return err
		}
		if err := s.postRepo.ApplyEngagementDelta(ctx, tx, postID, t.LikesDelta, t.DislikesDelta, 0); err != nil {
			return err
		}

		metrics := post.EngagementMetrics
		metrics.Likes += t.LikesDelta
		metrics.Dislikes += t.DislikesDelta
		result = &model.EngagementResult{PostID: postID, Reaction: t.Next, EngagementMetrics: metrics}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"post_id": postID, "user_id": userID, "action": action}).Debug("[EngagementService] Reaction applied")
	return result, nil
}
