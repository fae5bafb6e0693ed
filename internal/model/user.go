package model

import (
	"time"
)

// Roles carried in access tokens.
const (
	RoleUser      = "user"
	RoleMiniAdmin = "mini_admin"
	RoleAdmin     = "admin"
)

// User represents a user in the system
type User struct {
	ID               int64     `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	Email            string    `db:"email" json:"email"`
	PasswordHashed   string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	Country          *string   `db:"country" json:"country"`
	Score            int64     `db:"score" json:"score"`
	Level            int       `db:"level" json:"level"`
	PostCount        int       `db:"post_count" json:"postCount"`
	QuizzesCompleted int       `db:"quizzes_completed" json:"quizzesCompleted"`
	GamesPlayed      int       `db:"games_played" json:"gamesPlayed"`
	IsAdmin          bool      `db:"is_admin" json:"isAdmin"`
	IsMiniAdmin      bool      `db:"is_mini_admin" json:"isMiniAdmin"`
	CommunityID      *int64    `db:"community_id" json:"communityId"`
	JoinDate         time.Time `db:"created_at" json:"joinDate"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`

	// Joined fields
	Badges       []int64 `json:"badges,omitempty"`
	Achievements []int64 `json:"achievements,omitempty"`
}

// Role derives the token role from the stored flags.
func (u *User) Role() string {
	switch {
	case u.IsAdmin:
		return RoleAdmin
	case u.IsMiniAdmin:
		return RoleMiniAdmin
	default:
		return RoleUser
	}
}

// UserSummary is the lightweight author/holder projection.
type UserSummary struct {
	ID       int64   `db:"id" json:"id"`
	Username string  `db:"username" json:"username"`
	Country  *string `db:"country" json:"country,omitempty"`
}

// UserStats mirrors the admin stats endpoint.
type UserStats struct {
	UserID           int64  `db:"id" json:"userId"`
	PostCount        int    `db:"post_count" json:"postCount"`
	Score            int64  `db:"score" json:"score"`
	Level            int    `db:"level" json:"level"`
	BadgeCount       int    `db:"badge_count" json:"badgeCount"`
	AchievementCount int    `db:"achievement_count" json:"achievementCount"`
	IsMiniAdmin      bool   `db:"is_mini_admin" json:"isMiniAdmin"`
	CommunityID      *int64 `db:"community_id" json:"communityId"`
	GamesPlayed      int    `db:"games_played" json:"gamesPlayed"`
	QuizzesCompleted int    `db:"quizzes_completed" json:"quizzesCompleted"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=30"`
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	Country  *string `json:"country" validate:"omitempty,max=80"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserListResponse is the paginated admin user list.
type UserListResponse struct {
	Users      []User  `json:"users"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// LevelForScore is the level a score earns; stored levels never go down.
func LevelForScore(score int64) int {
	if score < 0 {
		return 1
	}
	return 1 + int(score/PointsPerLevel)
}

// PointsPerLevel is the score needed per level step.
const PointsPerLevel = 1000

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = NewError(KindNotFound, "user not found")

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = NewError(KindConflict, "username already exists")

	// ErrEmailExists is returned when attempting to create a user with a taken email
	ErrEmailExists = NewError(KindConflict, "email already exists")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = NewError(KindUnauthorized, "invalid email or password")

	// ErrIdentityRequired is returned when an operation runs without a caller identity
	ErrIdentityRequired = NewError(KindUnauthorized, "authentication required")

	// ErrNotAdmin is returned when an admin-only operation is attempted by someone else
	ErrNotAdmin = NewError(KindForbidden, "admin privileges required")
)

// Actor is the authenticated caller of a privileged operation.
type Actor struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// UserDeletion reports what a user delete removed along with the account.
type UserDeletion struct {
	UserID              int64   `json:"userId"`
	PostsDeleted        int64   `json:"postsDeleted"`
	ReactionsRemoved    int64   `json:"reactionsRemoved"`
	CommentsRemoved     int64   `json:"commentsRemoved"`
	SessionsDeleted     int64   `json:"sessionsDeleted"`
	AttemptsDeleted     int64   `json:"attemptsDeleted"`
	CommunitiesOrphaned []int64 `json:"communitiesOrphaned"`
}
