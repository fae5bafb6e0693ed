package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/queue"
	"geojungle/internal/repository"
)

// AchievementService mirrors BadgeService. Points are informational and do
// not feed users.score, which only counts game sessions.
type AchievementService struct {
	tx              repository.Transactor
	achievementRepo repository.AchievementRepository
	cascade         *CatalogCascade
}

func NewAchievementService(tx repository.Transactor, achievementRepo repository.AchievementRepository, cascade *CatalogCascade) *AchievementService {
	return &AchievementService{tx: tx, achievementRepo: achievementRepo, cascade: cascade}
}

func (s *AchievementService) Create(ctx context.Context, req model.AchievementRequest) (*model.Achievement, error) {
	a := &model.Achievement{IsActive: true}
	applyAchievementRequest(a, req)
	if err := s.achievementRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	log.Printf("[AchievementService] Achievement %d %q created", a.ID, a.Name)
	return a, nil
}

func applyAchievementRequest(a *model.Achievement, req model.AchievementRequest) {
	a.Name = strings.TrimSpace(req.Name)
	a.Description = strings.TrimSpace(req.Description)
	a.Icon = req.Icon
	a.Color = req.Color
	a.Level = req.Level
	a.Points = req.Points
	a.Requirements = req.Requirements
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
}

func (s *AchievementService) GetByID(ctx context.Context, id int64) (*model.Achievement, error) {
	a, err := s.achievementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	holders, err := s.achievementRepo.ListHolders(ctx, id)
	if err != nil {
		return nil, err
	}
	a.AwardedTo = holders
	return a, nil
}

func (s *AchievementService) List(ctx context.Context, filter model.CatalogFilter) ([]model.Achievement, error) {
	return s.achievementRepo.List(ctx, filter)
}

func (s *AchievementService) ListForUser(ctx context.Context, userID int64) ([]model.Achievement, error) {
	return s.achievementRepo.ListForUser(ctx, userID)
}

func (s *AchievementService) Update(ctx context.Context, id int64, req model.AchievementRequest) (*model.Achievement, error) {
	a, err := s.achievementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyAchievementRequest(a, req)
	if err := s.achievementRepo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AchievementService) Delete(ctx context.Context, id int64) error {
	return s.cascade.Delete(ctx, queue.EntityAchievement, id)
}

func (s *AchievementService) Award(ctx context.Context, achievementID, userID int64) error {
	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.achievementRepo.LockActive(ctx, tx, achievementID); err != nil {
			return err
		}
		return s.achievementRepo.AddHolder(ctx, tx, achievementID, userID)
	})
}

func (s *AchievementService) Revoke(ctx context.Context, achievementID, userID int64) error {
	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.achievementRepo.RemoveHolder(ctx, tx, achievementID, userID)
	})
}
