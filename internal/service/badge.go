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

type BadgeService struct {
	tx        repository.Transactor
	badgeRepo repository.BadgeRepository
	cascade   *CatalogCascade
}

func NewBadgeService(tx repository.Transactor, badgeRepo repository.BadgeRepository, cascade *CatalogCascade) *BadgeService {
	return &BadgeService{tx: tx, badgeRepo: badgeRepo, cascade: cascade}
}

func (s *BadgeService) Create(ctx context.Context, req model.BadgeRequest) (*model.Badge, error) {
	badge := &model.Badge{IsActive: true}
	applyBadgeRequest(badge, req)
	if err := s.badgeRepo.Create(ctx, badge); err != nil {
		return nil, err
	}
	log.Printf("[BadgeService] Badge %d %q created", badge.ID, badge.Name)
	return badge, nil
}

func applyBadgeRequest(b *model.Badge, req model.BadgeRequest) {
	b.Name = strings.TrimSpace(req.Name)
	b.Description = strings.TrimSpace(req.Description)
	b.Icon = req.Icon
	b.Color = req.Color
	b.Level = req.Level
	b.Requirements = req.Requirements
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
}

// GetByID returns the badge with its holders.
func (s *BadgeService) GetByID(ctx context.Context, id int64) (*model.Badge, error) {
	badge, err := s.badgeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	holders, err := s.badgeRepo.ListHolders(ctx, id)
	if err != nil {
		return nil, err
	}
	badge.AwardedTo = holders
	return badge, nil
}

func (s *BadgeService) List(ctx context.Context, filter model.CatalogFilter) ([]model.Badge, error) {
	return s.badgeRepo.List(ctx, filter)
}

// ListForUser returns every badge userID holds, inactive ones included.
func (s *BadgeService) ListForUser(ctx context.Context, userID int64) ([]model.Badge, error) {
	return s.badgeRepo.ListForUser(ctx, userID)
}

func (s *BadgeService) Update(ctx context.Context, id int64, req model.BadgeRequest) (*model.Badge, error) {
	badge, err := s.badgeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyBadgeRequest(badge, req)
	if err := s.badgeRepo.Update(ctx, badge); err != nil {
		return nil, err
	}
	return badge, nil
}

// Delete removes the badge from every holder before the catalog row goes.
func (s *BadgeService) Delete(ctx context.Context, id int64) error {
	return s.cascade.Delete(ctx, queue.EntityBadge, id)
}

// Award gives an active badge to a user.
func (s *BadgeService) Award(ctx context.Context, badgeID, userID int64) error {
	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.badgeRepo.LockActive(ctx, tx, badgeID); err != nil {
			return err
		}
		return s.badgeRepo.AddHolder(ctx, tx, badgeID, userID)
	})
}

// Revoke takes a badge away from a user.
func (s *BadgeService) Revoke(ctx context.Context, badgeID, userID int64) error {
	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.badgeRepo.RemoveHolder(ctx, tx, badgeID, userID)
	})
}
