package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

type MiniAdminService struct {
	tx            repository.Transactor
	miniAdminRepo repository.MiniAdminRepository
	userRepo      repository.UserRepository
	communityRepo repository.CommunityRepository
}

func NewMiniAdminService(
	tx repository.Transactor,
	miniAdminRepo repository.MiniAdminRepository,
	userRepo repository.UserRepository,
	communityRepo repository.CommunityRepository,
) *MiniAdminService {
	return &MiniAdminService{
		tx:            tx,
		miniAdminRepo: miniAdminRepo,
		userRepo:      userRepo,
		communityRepo: communityRepo,
	}
}

// Grant makes userID a mini-admin of communityID. A user who is not yet a
// member joins the community as part of the grant.
func (s *MiniAdminService) Grant(ctx context.Context, req model.GrantMiniAdminRequest) (*model.MiniAdmin, error) {
	m := &model.MiniAdmin{
		UserID:      req.UserID,
		CommunityID: req.CommunityID,
		Role:        req.Role,
		Permissions: req.Permissions,
		Sections:    req.Sections,
		IsActive:    true,
	}
	if len(m.Permissions) == 0 && m.Role == model.MiniAdminCommunityManager {
		m.Permissions = append([]string(nil), model.DefaultCommunityManagerPermissions...)
		m.Sections = append([]string(nil), model.DefaultCommunityManagerSections...)
	}
	if m.Permissions == nil {
		m.Permissions = []string{}
	}
	if m.Sections == nil {
		m.Sections = []string{}
	}

	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.communityRepo.GetForUpdate(ctx, tx, req.CommunityID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return model.ErrCommunityInactive
		}

		user, err := s.userRepo.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user.IsMiniAdmin {
			return model.ErrAlreadyMiniAdmin
		}
		if user.CommunityID != nil && *user.CommunityID != req.CommunityID {
			return model.ErrAlreadyInCommunity
		}
		m.Username = user.Username

		if err := s.miniAdminRepo.Create(ctx, tx, m); err != nil {
			return err
		}
		if err := s.userRepo.SetMembership(ctx, tx, user.ID, &req.CommunityID, true); err != nil {
			return err
		}
		if user.CommunityID == nil {
			return s.communityRepo.AdjustMemberCount(ctx, tx, req.CommunityID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MiniAdminService] User %d granted %s in community %d", m.UserID, m.Role, m.CommunityID)
	return m, nil
}

func (s *MiniAdminService) GetByUserID(ctx context.Context, userID int64) (*model.MiniAdmin, error) {
	return s.miniAdminRepo.GetByUserID(ctx, userID)
}

func (s *MiniAdminService) List(ctx context.Context, communityID *int64) ([]model.MiniAdmin, error) {
	return s.miniAdminRepo.List(ctx, communityID)
}

func (s *MiniAdminService) Update(ctx context.Context, userID int64, req model.UpdateMiniAdminRequest) (*model.MiniAdmin, error) {
	m, err := s.miniAdminRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Role != nil {
		m.Role = *req.Role
	}
	if req.Permissions != nil {
		m.Permissions = req.Permissions
	}
	if req.Sections != nil {
		m.Sections = req.Sections
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if err := s.miniAdminRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordActivity stamps last_active.
func (s *MiniAdminService) RecordActivity(ctx context.Context, userID int64) error {
	return s.miniAdminRepo.Touch(ctx, userID)
}

// Revoke reverses a grant: the flag and the community link are cleared
// together. If the user administers a community, that community is
// deactivated and every member is detached from it.
func (s *MiniAdminService) Revoke(ctx context.Context, userID int64) error {
	m, err := s.miniAdminRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	var orphaned []int64
	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.communityRepo.GetForUpdate(ctx, tx, m.CommunityID); err != nil {
			return err
		}
		administered, err := s.communityRepo.AdministeredBy(ctx, tx, userID)
		if err != nil {
			return err
		}
		user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := s.miniAdminRepo.Delete(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.userRepo.SetMembership(ctx, tx, userID, nil, false); err != nil {
			return err
		}
		if user.CommunityID != nil {
			if err := s.communityRepo.AdjustMemberCount(ctx, tx, *user.CommunityID, -1); err != nil {
				return err
			}
		}

		for _, cid := range administered {
			if err := orphanCommunity(ctx, tx, s.communityRepo, s.userRepo, s.miniAdminRepo, cid); err != nil {
				return err
			}
		}
		orphaned = administered
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"user_id": userID, "orphaned": orphaned}).Info("[MiniAdminService] Mini-admin revoked")
	return nil
}

// orphanCommunity detaches every member of a community that lost its admin,
// drops its remaining mini-admin grants and deactivates it.
func orphanCommunity(
	ctx context.Context,
	tx *sqlx.Tx,
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	miniAdminRepo repository.MiniAdminRepository,
	communityID int64,
) error {
	members, err := userRepo.LockMembers(ctx, tx, communityID)
	if err != nil {
		return err
	}
	if _, err := userRepo.DetachMembers(ctx, tx, communityID, members); err != nil {
		return err
	}
	if _, err := miniAdminRepo.DeleteByCommunity(ctx, tx, communityID); err != nil {
		return err
	}
	if err := communityRepo.Orphan(ctx, tx, communityID); err != nil {
		return err
	}
	log.WithField("community_id", communityID).Warn("[Membership] Community orphaned and deactivated")
	return nil
}
