package model

import "time"

// Audience scopes a refresh token to the backend that issued it. A token
// from the public app cannot be rotated on the admin backend and the other
// way round.
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceAdmin  Audience = "admin"
)

// RefreshToken is the stored half of a token pair. Only the SHA-256 of the
// raw token is kept.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"userId"`
	Audience   Audience   `db:"audience" json:"audience"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	ReplacedBy *string    `db:"replaced_by" json:"replacedBy,omitempty"`
	DeviceInfo *string    `db:"device_info" json:"deviceInfo,omitempty"`
	IPAddress  *string    `db:"ip_address" json:"ipAddress,omitempty"`
}

func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

func (t *RefreshToken) ExpiredAt(now time.Time) bool { return !now.Before(t.ExpiresAt) }

var (
	ErrRefreshTokenNotFound = NewError(KindUnauthorized, "invalid refresh token")
	ErrRefreshTokenExpired  = NewError(KindUnauthorized, "refresh token expired")
	// Presenting an already rotated token revokes every session of the user.
	ErrRefreshTokenReused = NewError(KindUnauthorized, "refresh token reuse detected, please login again")
)

// Machine-readable codes for 401 responses, so clients know whether to
// refresh or to log in again.
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenReused  = "TOKEN_REUSED"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

type LoginResponse struct {
	User *User `json:"user"`
	TokenPair
}

// TokenRequest carries a raw refresh token for refresh and logout.
type TokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}
