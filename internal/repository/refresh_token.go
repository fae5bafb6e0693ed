package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const refreshTokenColumns = `id, user_id, audience, token_hash, expires_at, created_at,
	revoked_at, replaced_by, device_info, ip_address`

type refreshTokenRepository struct {
	db *sqlx.DB
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, audience, token_hash, expires_at, device_info, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		token.ID, token.UserID, token.Audience, token.TokenHash, token.ExpiresAt, token.DeviceInfo, token.IPAddress,
	).Scan(&token.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return &token, nil
}

// Rotate revokes oldID and inserts next in one statement. The insert only
// happens if oldID was still live, so of two concurrent refreshes with the
// same token exactly one wins; the loser gets ErrRefreshTokenReused.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	query := `
		WITH old AS (
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2::uuid
			WHERE id = $1 AND revoked_at IS NULL
			RETURNING id
		)
		INSERT INTO refresh_tokens (id, user_id, audience, token_hash, expires_at, device_info, ip_address)
		SELECT $2::uuid, $3::bigint, $4::varchar, $5::varchar, $6::timestamptz, $7::text, $8::varchar FROM old
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		oldID, next.ID, next.UserID, next.Audience, next.TokenHash, next.ExpiresAt, next.DeviceInfo, next.IPAddress,
	).Scan(&next.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrRefreshTokenReused
	}
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens for user %d: %w", userID, err)
	}
	return result.RowsAffected()
}

// DeleteExpired purges tokens that expired, or were revoked, more than
// olderThan ago.
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < NOW() - make_interval(secs => $1)
		   OR revoked_at < NOW() - make_interval(secs => $1)
	`
	result, err := r.db.ExecContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
