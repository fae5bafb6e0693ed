package model

import (
	"time"
)

// Achievement is a catalog entry with points, awarded like a badge.
type Achievement struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Icon         string    `db:"icon" json:"icon"`
	Color        string    `db:"color" json:"color"`
	Level        string    `db:"level" json:"level"`
	Points       int       `db:"points" json:"points"`
	Requirements string    `db:"requirements" json:"requirements"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	HolderCount  int       `db:"holder_count" json:"holderCount"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	AwardedTo []Holder `json:"awardedTo,omitempty"`
}

// AchievementRequest is used for both create and full update.
type AchievementRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"required,max=1000"`
	Icon         string `json:"icon" validate:"required,max=200"`
	Color        string `json:"color" validate:"required,max=32"`
	Level        string `json:"level" validate:"required,oneof=beginner intermediate advanced expert"`
	Points       int    `json:"points" validate:"gte=0"`
	Requirements string `json:"requirements" validate:"max=1000"`
	IsActive     *bool  `json:"isActive"`
}

// Achievement errors
var (
	ErrAchievementNotFound    = NewError(KindNotFound, "achievement not found")
	ErrAchievementNameExists  = NewError(KindConflict, "achievement name already exists")
	ErrAchievementAlreadyHeld = NewError(KindConflict, "user already holds this achievement")
	ErrAchievementNotHeld     = NewError(KindConflict, "user does not hold this achievement")
)
