package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const miniAdminColumns = `m.user_id, u.username, m.community_id, m.role, m.permissions, m.sections,
	m.is_active, m.last_active, m.created_at`

type miniAdminRepository struct {
	db *sqlx.DB
}

func NewMiniAdminRepository(db *sqlx.DB) MiniAdminRepository {
	return &miniAdminRepository{db: db}
}

func (r *miniAdminRepository) Create(ctx context.Context, tx *sqlx.Tx, m *model.MiniAdmin) error {
	query := `
		INSERT INTO mini_admins (user_id, community_id, role, permissions, sections, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.GetContext(ctx, &m.CreatedAt, query, m.UserID, m.CommunityID, m.Role, m.Permissions, m.Sections, m.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyMiniAdmin
		}
		if isForeignKeyViolation(err) {
			return model.NewError(model.KindNotFound, "user or community not found")
		}
		return fmt.Errorf("insert mini-admin: %w", err)
	}
	return nil
}

func (r *miniAdminRepository) GetByUserID(ctx context.Context, userID int64) (*model.MiniAdmin, error) {
	query := `SELECT ` + miniAdminColumns + ` FROM mini_admins m JOIN users u ON u.id = m.user_id WHERE m.user_id = $1`
	var m model.MiniAdmin
	err := r.db.GetContext(ctx, &m, query, userID)
	if err == sql.ErrNoRows {
		return nil, model.ErrMiniAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mini-admin: %w", err)
	}
	return &m, nil
}

func (r *miniAdminRepository) List(ctx context.Context, communityID *int64) ([]model.MiniAdmin, error) {
	query := `SELECT ` + miniAdminColumns + ` FROM mini_admins m JOIN users u ON u.id = m.user_id`
	var args []interface{}
	if communityID != nil {
		query += ` WHERE m.community_id = $1`
		args = append(args, *communityID)
	}
	query += ` ORDER BY m.created_at DESC`

	admins := []model.MiniAdmin{}
	if err := r.db.SelectContext(ctx, &admins, query, args...); err != nil {
		return nil, fmt.Errorf("list mini-admins: %w", err)
	}
	return admins, nil
}

func (r *miniAdminRepository) Update(ctx context.Context, m *model.MiniAdmin) error {
	query := `UPDATE mini_admins SET role = $2, permissions = $3, sections = $4, is_active = $5 WHERE user_id = $1`
	return execExpectRow(ctx, r.db, model.ErrMiniAdminNotFound, "update mini-admin", query,
		m.UserID, m.Role, m.Permissions, m.Sections, m.IsActive)
}

func (r *miniAdminRepository) Touch(ctx context.Context, userID int64) error {
	return execExpectRow(ctx, r.db, model.ErrMiniAdminNotFound, "record mini-admin activity",
		`UPDATE mini_admins SET last_active = NOW() WHERE user_id = $1`, userID)
}

func (r *miniAdminRepository) Delete(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	return execExpectRow(ctx, tx, model.ErrMiniAdminNotFound, "delete mini-admin",
		`DELETE FROM mini_admins WHERE user_id = $1`, userID)
}

func (r *miniAdminRepository) DeleteByCommunity(ctx context.Context, tx *sqlx.Tx, communityID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM mini_admins WHERE community_id = $1`, communityID)
	if err != nil {
		return 0, fmt.Errorf("delete community mini-admins: %w", err)
	}
	return result.RowsAffected()
}
