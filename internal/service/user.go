package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

// UserRepos bundles the repositories a user delete has to touch.
type UserRepos struct {
	Users        repository.UserRepository
	Posts        repository.PostRepository
	Comments     repository.CommentRepository
	Communities  repository.CommunityRepository
	MiniAdmins   repository.MiniAdminRepository
	Sessions     repository.GameSessionRepository
	Quizzes      repository.QuizRepository
	Badges       repository.BadgeRepository
	Achievements repository.AchievementRepository
}

// UserService handles business logic for user operations
type UserService struct {
	tx          repository.Transactor
	repos       UserRepos
	leaderboard *LeaderboardService
	media       *MediaService
}

func NewUserService(tx repository.Transactor, repos UserRepos, leaderboard *LeaderboardService, media *MediaService) *UserService {
	return &UserService{
		tx:          tx,
		repos:       repos,
		leaderboard: leaderboard,
		media:       media,
	}
}

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(username) < 3 || len(username) > 30 {
		return nil, model.Validationf("username must be 3 to 30 characters")
	}
	if email == "" {
		return nil, model.Validationf("email is required")
	}
	if len(req.Password) < 6 {
		return nil, model.Validationf("password must be at least 6 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:       username,
		Email:          email,
		PasswordHashed: string(hashedPassword),
		Country:        req.Country,
		Level:          1,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[UserService] Registered user %d %q", user.ID, user.Username)
	return user, nil
}

// Login authenticates a user with email and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repos.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Don't reveal whether the email exists
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

// LoginStaff is Login restricted to admins and mini-admins.
func (s *UserService) LoginStaff(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if user.Role() == model.RoleUser {
		return nil, model.ErrNotAdmin
	}
	return user, nil
}

// GetByID returns the user with badge and achievement ids filled in.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Badges, err = s.repos.Badges.IDsForUser(ctx, id); err != nil {
		return nil, err
	}
	if user.Achievements, err = s.repos.Achievements.IDsForUser(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Stats(ctx context.Context, id int64) (*model.UserStats, error) {
	return s.repos.Users.GetStats(ctx, id)
}

// List searches users by username or email.
func (s *UserService) List(ctx context.Context, query string, cursor *string, limit int) (*model.UserListResponse, error) {
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}

	users, next, err := s.repos.Users.List(ctx, strings.TrimSpace(query), cursor, limit)
	if err != nil {
		return nil, err
	}
	return &model.UserListResponse{Users: users, NextCursor: next, HasMore: next != nil}, nil
}

// errMembershipMoved aborts a delete attempt whose user joined or left a
// community between the unlocked read and the row lock.
var errMembershipMoved = errors.New("membership changed during delete")

const deleteAttempts = 3

// Delete removes a user and everything that references them in one
// transaction. Communities they administer are orphaned: members are
// detached and the community is deactivated, not deleted. Leaderboard and
// stored images are cleaned up after commit on a best-effort basis.
func (s *UserService) Delete(ctx context.Context, id int64) (*model.UserDeletion, error) {
	var (
		report    *model.UserDeletion
		imageKeys []string
		err       error
	)
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		report, imageKeys, err = s.deleteOnce(ctx, id)
		if !errors.Is(err, errMembershipMoved) {
			break
		}
		log.WithFields(log.Fields{"user_id": id, "attempt": attempt}).
			Warn("[UserService] Membership changed during delete, retrying")
	}
	if errors.Is(err, errMembershipMoved) {
		return nil, model.NewError(model.KindConflict, "user membership keeps changing, try again")
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   id,
		"posts":     report.PostsDeleted,
		"reactions": report.ReactionsRemoved,
		"comments":  report.CommentsRemoved,
		"sessions":  report.SessionsDeleted,
		"orphaned":  report.CommunitiesOrphaned,
	}).Info("[UserService] User deleted")

	if s.media != nil && len(imageKeys) > 0 {
		s.media.Delete(ctx, imageKeys...)
	}
	if err := s.leaderboard.Forget(ctx, id); err != nil {
		return report, err
	}
	return report, nil
}

// deleteOnce runs one delete transaction. Communities are locked before the
// user row, the same order Join and Leave take them in.
func (s *UserService) deleteOnce(ctx context.Context, id int64) (*model.UserDeletion, []string, error) {
	report := &model.UserDeletion{UserID: id, CommunitiesOrphaned: []int64{}}
	var imageKeys []string

	current, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	memberOf := current.CommunityID

	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		administered, err := s.repos.Communities.AdministeredBy(ctx, tx, id)
		if err != nil {
			return err
		}
		if memberOf != nil && !containsID(administered, *memberOf) {
			if _, err := s.repos.Communities.GetForUpdate(ctx, tx, *memberOf); err != nil {
				if errors.Is(err, model.ErrCommunityNotFound) {
					return errMembershipMoved
				}
				return err
			}
		}
		user, err := s.repos.Users.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !sameCommunity(user.CommunityID, memberOf) {
			return errMembershipMoved
		}

		for _, cid := range administered {
			if err := orphanCommunity(ctx, tx, s.repos.Communities, s.repos.Users, s.repos.MiniAdmins, cid); err != nil {
				return err
			}
		}
		report.CommunitiesOrphaned = append(report.CommunitiesOrphaned, administered...)

		if user.CommunityID != nil && !containsID(administered, *user.CommunityID) {
			if err := s.repos.Communities.AdjustMemberCount(ctx, tx, *user.CommunityID, -1); err != nil {
				return err
			}
		}

		if report.ReactionsRemoved, err = s.repos.Posts.RemoveUserReactions(ctx, tx, id); err != nil {
			return err
		}
		if report.CommentsRemoved, err = s.repos.Comments.RemoveByUser(ctx, tx, id); err != nil {
			return err
		}
		if imageKeys, err = s.repos.Posts.ListImageKeysByAuthor(ctx, tx, id); err != nil {
			return err
		}
		if report.PostsDeleted, err = s.repos.Posts.DeleteByAuthor(ctx, tx, id); err != nil {
			return err
		}
		if report.SessionsDeleted, err = s.repos.Sessions.DeleteByPlayer(ctx, tx, id); err != nil {
			return err
		}
		if report.AttemptsDeleted, err = s.repos.Quizzes.DeleteAttemptsByUser(ctx, tx, id); err != nil {
			return err
		}
		// Holder rows, the mini-admin grant and refresh tokens go with the
		// user row through ON DELETE CASCADE.
		return s.repos.Users.Delete(ctx, tx, id)
	})
	if err != nil {
		return nil, nil, err
	}
	return report, imageKeys, nil
}

func sameCommunity(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
