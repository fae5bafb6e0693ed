package model

import (
	"time"
)

// Community groups users under one mini-admin.
type Community struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	AdminID       *int64    `db:"admin_id" json:"adminId"`
	AdminUsername string    `db:"admin_username" json:"adminUsername"`
	MemberCount   int       `db:"member_count" json:"memberCount"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// CommunityStats is computed from the live member set, not the cached
// member_count.
type CommunityStats struct {
	CommunityID  int64   `json:"communityId"`
	MemberCount  int     `json:"memberCount"`
	TotalScore   int64   `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
	TotalPosts   int     `json:"totalPosts"`
}

// CreateCommunityRequest is the admin create body.
type CreateCommunityRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
	AdminID     int64  `json:"adminId" validate:"required,gt=0"`
}

// UpdateCommunityRequest carries partial updates.
type UpdateCommunityRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"isActive"`
}

// Community errors
var (
	ErrCommunityNotFound         = NewError(KindNotFound, "community not found")
	ErrCommunityNameExists       = NewError(KindConflict, "community name already exists")
	ErrCommunityInactive         = NewError(KindConflict, "community is not active")
	ErrAlreadyInCommunity        = NewError(KindConflict, "user already belongs to a community")
	ErrNotCommunityMember        = NewError(KindConflict, "user is not a member of this community")
	ErrCommunityAdminCannotLeave = NewError(KindConflict, "the community admin cannot leave; delete the community or revoke the mini-admin instead")
	ErrMiniAdminCannotLeave      = NewError(KindConflict, "a mini-admin must be revoked before leaving the community")
)
