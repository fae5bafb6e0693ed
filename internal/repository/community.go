package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const communityColumns = `id, name, description, admin_id, admin_username, member_count, is_active, created_at, updated_at`

type communityRepository struct {
	db *sqlx.DB
}

func NewCommunityRepository(db *sqlx.DB) CommunityRepository {
	return &communityRepository{db: db}
}

func (r *communityRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Community) error {
	query := `
		INSERT INTO communities (name, description, admin_id, admin_username, member_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRowxContext(ctx, query, c.Name, c.Description, c.AdminID, c.AdminUsername, c.MemberCount, c.IsActive).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrCommunityNameExists
		}
		return fmt.Errorf("insert community: %w", err)
	}
	return nil
}

func (r *communityRepository) GetByID(ctx context.Context, id int64) (*model.Community, error) {
	return r.getOne(ctx, r.db, `SELECT `+communityColumns+` FROM communities WHERE id = $1`, id)
}

// GetForUpdate takes the row lock that serializes join, leave and delete.
func (r *communityRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Community, error) {
	return r.getOne(ctx, tx, `SELECT `+communityColumns+` FROM communities WHERE id = $1 FOR UPDATE`, id)
}

func (r *communityRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, id int64) (*model.Community, error) {
	var c model.Community
	err := sqlx.GetContext(ctx, q, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get community: %w", err)
	}
	return &c, nil
}

func (r *communityRepository) List(ctx context.Context, activeOnly bool) ([]model.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	communities := []model.Community{}
	if err := r.db.SelectContext(ctx, &communities, query); err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return communities, nil
}

func (r *communityRepository) Update(ctx context.Context, tx *sqlx.Tx, c *model.Community) error {
	query := `
		UPDATE communities SET name = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.GetContext(ctx, &c.UpdatedAt, query, c.ID, c.Name, c.Description, c.IsActive)
	if err == sql.ErrNoRows {
		return model.ErrCommunityNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrCommunityNameExists
		}
		return fmt.Errorf("update community: %w", err)
	}
	return nil
}

func (r *communityRepository) AdjustMemberCount(ctx context.Context, tx *sqlx.Tx, id int64, delta int) error {
	query := `UPDATE communities SET member_count = GREATEST(member_count + $2, 0), updated_at = NOW() WHERE id = $1`
	return execExpectRow(ctx, tx, model.ErrCommunityNotFound, "adjust member count", query, id, delta)
}

func (r *communityRepository) Orphan(ctx context.Context, tx *sqlx.Tx, id int64) error {
	query := `
		UPDATE communities
		SET is_active = FALSE, admin_id = NULL, member_count = 0, updated_at = NOW()
		WHERE id = $1
	`
	return execExpectRow(ctx, tx, model.ErrCommunityNotFound, "orphan community", query, id)
}

func (r *communityRepository) AdministeredBy(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error) {
	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM communities WHERE admin_id = $1 ORDER BY id FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("list administered communities: %w", err)
	}
	return ids, nil
}

func (r *communityRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.CascadeIncomplete("community still has members", err)
		}
		return fmt.Errorf("delete community: %w", err)
	}
	return nil
}

// Stats reads the live member set; an empty community yields zeros.
func (r *communityRepository) Stats(ctx context.Context, id int64) (*model.CommunityStats, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT COUNT(*) AS member_count,
		       COALESCE(SUM(score), 0) AS total_score,
		       COALESCE(SUM(post_count), 0) AS total_posts
		FROM users
		WHERE community_id = $1
	`
	var row struct {
		MemberCount int   `db:"member_count"`
		TotalScore  int64 `db:"total_score"`
		TotalPosts  int   `db:"total_posts"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("community stats: %w", err)
	}

	stats := &model.CommunityStats{
		CommunityID: id,
		MemberCount: row.MemberCount,
		TotalScore:  row.TotalScore,
		TotalPosts:  row.TotalPosts,
	}
	if row.MemberCount > 0 {
		stats.AverageScore = float64(row.TotalScore) / float64(row.MemberCount)
	}
	return stats, nil
}
