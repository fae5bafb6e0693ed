package model

import (
	"time"

	"github.com/lib/pq"
)

// Mini-admin roles
const (
	MiniAdminContentModerator = "content_moderator"
	MiniAdminUserModerator    = "user_moderator"
	MiniAdminGameManager      = "game_manager"
	MiniAdminCommunityManager = "community_manager"
)

// Mini-admin permissions
const (
	PermManagePosts     = "manage_posts"
	PermManageUsers     = "manage_users"
	PermManageGames     = "manage_games"
	PermManageBadges    = "manage_badges"
	PermViewStatistics  = "view_statistics"
	PermManageContent   = "manage_content"
	PermManageCommunity = "manage_community"
)

// DefaultCommunityManagerPermissions are granted to the admin of a newly
// created community.
var DefaultCommunityManagerPermissions = []string{PermManagePosts, PermManageCommunity, PermViewStatistics}

// DefaultCommunityManagerSections go with DefaultCommunityManagerPermissions.
var DefaultCommunityManagerSections = []string{"posts", "community"}

// MiniAdmin is the one-to-one moderation grant for a user.
type MiniAdmin struct {
	UserID      int64          `db:"user_id" json:"user"`
	Username    string         `db:"username" json:"username"`
	CommunityID int64          `db:"community_id" json:"communityId"`
	Role        string         `db:"role" json:"role"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
	Sections    pq.StringArray `db:"sections" json:"assignedSections"`
	IsActive    bool           `db:"is_active" json:"isActive"`
	LastActive  *time.Time     `db:"last_active" json:"lastActive"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// HasPermission reports whether the grant is active and includes perm.
func (m *MiniAdmin) HasPermission(perm string) bool {
	if !m.IsActive {
		return false
	}
	for _, p := range m.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// GrantMiniAdminRequest is the admin grant body.
type GrantMiniAdminRequest struct {
	UserID      int64    `json:"userId" validate:"required,gt=0"`
	CommunityID int64    `json:"communityId" validate:"required,gt=0"`
	Role        string   `json:"role" validate:"required,oneof=content_moderator user_moderator game_manager community_manager"`
	Permissions []string `json:"permissions" validate:"dive,oneof=manage_posts manage_users manage_games manage_badges view_statistics manage_content manage_community"`
	Sections    []string `json:"assignedSections" validate:"dive,oneof=posts users games badges community"`
}

// UpdateMiniAdminRequest carries partial updates.
type UpdateMiniAdminRequest struct {
	Role        *string  `json:"role" validate:"omitempty,oneof=content_moderator user_moderator game_manager community_manager"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,oneof=manage_posts manage_users manage_games manage_badges view_statistics manage_content manage_community"`
	Sections    []string `json:"assignedSections" validate:"omitempty,dive,oneof=posts users games badges community"`
	IsActive    *bool    `json:"isActive"`
}

// Mini-admin errors
var (
	ErrMiniAdminNotFound = NewError(KindNotFound, "mini-admin not found")
	ErrAlreadyMiniAdmin  = NewError(KindConflict, "user is already a mini-admin")
)
