package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

// CommunityService owns membership. Every membership change locks the
// community row first and the user rows second.
type CommunityService struct {
	tx            repository.Transactor
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	miniAdminRepo repository.MiniAdminRepository
}

func NewCommunityService(
	tx repository.Transactor,
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	miniAdminRepo repository.MiniAdminRepository,
) *CommunityService {
	return &CommunityService{
		tx:            tx,
		communityRepo: communityRepo,
		userRepo:      userRepo,
		miniAdminRepo: miniAdminRepo,
	}
}

// Create makes the community and turns its admin into a community_manager
// mini-admin and first member, all in one transaction.
func (s *CommunityService) Create(ctx context.Context, req model.CreateCommunityRequest) (*model.Community, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.Validationf("name is required")
	}

	community := &model.Community{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		MemberCount: 1,
		IsActive:    true,
	}
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		admin, err := s.userRepo.GetForUpdate(ctx, tx, req.AdminID)
		if err != nil {
			return err
		}
		if admin.IsMiniAdmin {
			return model.ErrAlreadyMiniAdmin
		}
		if admin.CommunityID != nil {
			return model.ErrAlreadyInCommunity
		}

		community.AdminID = &admin.ID
		community.AdminUsername = admin.Username
		if err := s.communityRepo.Create(ctx, tx, community); err != nil {
			return err
		}
		if err := s.userRepo.SetMembership(ctx, tx, admin.ID, &community.ID, true); err != nil {
			return err
		}
		return s.miniAdminRepo.Create(ctx, tx, &model.MiniAdmin{
			UserID:      admin.ID,
			Username:    admin.Username,
			CommunityID: community.ID,
			Role:        model.MiniAdminCommunityManager,
			Permissions: append([]string(nil), model.DefaultCommunityManagerPermissions...),
			Sections:    append([]string(nil), model.DefaultCommunityManagerSections...),
			IsActive:    true,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[CommunityService] Community %d %q created with admin %d", community.ID, community.Name, *community.AdminID)
	return community, nil
}

func (s *CommunityService) GetByID(ctx context.Context, id int64) (*model.Community, error) {
	return s.communityRepo.GetByID(ctx, id)
}

func (s *CommunityService) List(ctx context.Context, activeOnly bool) ([]model.Community, error) {
	return s.communityRepo.List(ctx, activeOnly)
}

// Stats aggregates the live member set; an empty community reports zeros.
func (s *CommunityService) Stats(ctx context.Context, id int64) (*model.CommunityStats, error) {
	return s.communityRepo.Stats(ctx, id)
}

// Members lists who currently belongs to the community. Only public profile
// fields are returned; the route is open to anonymous callers.
func (s *CommunityService) Members(ctx context.Context, id int64) ([]model.UserSummary, error) {
	if _, err := s.communityRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	members := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		members = append(members, model.UserSummary{ID: u.ID, Username: u.Username, Country: u.Country})
	}
	return members, nil
}

func (s *CommunityService) Update(ctx context.Context, id int64, req model.UpdateCommunityRequest) (*model.Community, error) {
	var updated *model.Community
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.communityRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
			if c.Name == "" {
				return model.Validationf("name must not be empty")
			}
		}
		if req.Description != nil {
			c.Description = strings.TrimSpace(*req.Description)
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		if err := s.communityRepo.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Join adds userID to an active community. The community row lock makes a
// concurrent Delete either see this member in its snapshot or run after the
// join has failed.
func (s *CommunityService) Join(ctx context.Context, communityID, userID int64) (*model.Community, error) {
	if userID <= 0 {
		return nil, model.ErrIdentityRequired
	}

	var joined *model.Community
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.communityRepo.GetForUpdate(ctx, tx, communityID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return model.ErrCommunityInactive
		}

		user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.CommunityID != nil {
			return model.ErrAlreadyInCommunity
		}

		if err := s.userRepo.SetMembership(ctx, tx, userID, &communityID, user.IsMiniAdmin); err != nil {
			return err
		}
		if err := s.communityRepo.AdjustMemberCount(ctx, tx, communityID, 1); err != nil {
			return err
		}
		c.MemberCount++
		joined = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[CommunityService] User %d joined community %d", userID, communityID)
	return joined, nil
}

// Leave removes a plain member. The admin and other mini-admins leave only
// through a revoke or a community delete.
func (s *CommunityService) Leave(ctx context.Context, communityID, userID int64) error {
	if userID <= 0 {
		return model.ErrIdentityRequired
	}

	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.communityRepo.GetForUpdate(ctx, tx, communityID)
		if err != nil {
			return err
		}
		user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.CommunityID == nil || *user.CommunityID != communityID {
			return model.ErrNotCommunityMember
		}
		if c.AdminID != nil && *c.AdminID == userID {
			return model.ErrCommunityAdminCannotLeave
		}
		if user.IsMiniAdmin {
			return model.ErrMiniAdminCannotLeave
		}

		if err := s.userRepo.SetMembership(ctx, tx, userID, nil, false); err != nil {
			return err
		}
		return s.communityRepo.AdjustMemberCount(ctx, tx, communityID, -1)
	})
	if err != nil {
		return err
	}

	log.Printf("[CommunityService] User %d left community %d", userID, communityID)
	return nil
}

// Delete detaches every member, admin included, and drops the community's
// mini-admin grants before the row itself goes. The member snapshot is
// taken under the community lock.
func (s *CommunityService) Delete(ctx context.Context, id int64) error {
	var detached int64
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.communityRepo.GetForUpdate(ctx, tx, id); err != nil {
			return err
		}

		members, err := s.userRepo.LockMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		detached, err = s.userRepo.DetachMembers(ctx, tx, id, members)
		if err != nil {
			return err
		}
		if _, err := s.miniAdminRepo.DeleteByCommunity(ctx, tx, id); err != nil {
			return err
		}

		remaining, err := s.userRepo.CountMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		if remaining > 0 {
			log.WithFields(log.Fields{"community_id": id, "remaining": remaining}).
				Error("[CommunityService] Members left after detach; delete aborted")
			return model.CascadeIncomplete("community members could not all be detached", nil)
		}

		return s.communityRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	log.Printf("[CommunityService] Community %d deleted, %d members detached", id, detached)
	return nil
}
