package model

import (
	"time"
)

// Badge levels
const (
	BadgeLevelBronze   = "bronze"
	BadgeLevelSilver   = "silver"
	BadgeLevelGold     = "gold"
	BadgeLevelPlatinum = "platinum"
)

// Badge is a catalog entry that can be awarded to users.
type Badge struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Icon         string    `db:"icon" json:"icon"`
	Color        string    `db:"color" json:"color"`
	Level        string    `db:"level" json:"level"`
	Requirements string    `db:"requirements" json:"requirements"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	HolderCount  int       `db:"holder_count" json:"holderCount"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	AwardedTo []Holder `json:"awardedTo,omitempty"`
}

// Holder is one {user, awardedAt} pair of a badge or achievement.
type Holder struct {
	UserID    int64     `db:"user_id" json:"user"`
	Username  string    `db:"username" json:"username"`
	AwardedAt time.Time `db:"awarded_at" json:"awardedAt"`
}

// BadgeRequest is used for both create and full update.
type BadgeRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"required,max=1000"`
	Icon         string `json:"icon" validate:"required,max=200"`
	Color        string `json:"color" validate:"required,max=32"`
	Level        string `json:"level" validate:"required,oneof=bronze silver gold platinum"`
	Requirements string `json:"requirements" validate:"max=1000"`
	IsActive     *bool  `json:"isActive"`
}

// CatalogFilter narrows badge and achievement listings.
type CatalogFilter struct {
	Level      string
	ActiveOnly bool
}

// Badge errors
var (
	ErrBadgeNotFound    = NewError(KindNotFound, "badge not found")
	ErrBadgeNameExists  = NewError(KindConflict, "badge name already exists")
	ErrBadgeAlreadyHeld = NewError(KindConflict, "user already holds this badge")
	ErrBadgeNotHeld     = NewError(KindConflict, "user does not hold this badge")
)
