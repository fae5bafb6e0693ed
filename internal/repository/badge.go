package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const badgeColumns = `c.id, c.name, c.description, c.icon, c.color, c.level, c.requirements, c.is_active, c.created_at, c.updated_at`

type badgeRepository struct {
	db *sqlx.DB
	h  holderTable
}

func NewBadgeRepository(db *sqlx.DB) BadgeRepository {
	return &badgeRepository{db: db, h: badgeHolders}
}

func (r *badgeRepository) Create(ctx context.Context, b *model.Badge) error {
	query := `
		INSERT INTO badges (name, description, icon, color, level, requirements, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, b.Name, b.Description, b.Icon, b.Color, b.Level, b.Requirements, b.IsActive).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrBadgeNameExists
		}
		return fmt.Errorf("insert badge: %w", err)
	}
	return nil
}

func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*model.Badge, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM badges c WHERE c.id = $1`, badgeColumns, r.h.holderCountSQL("c"))
	var b model.Badge
	err := r.db.GetContext(ctx, &b, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrBadgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return &b, nil
}

func (r *badgeRepository) List(ctx context.Context, f model.CatalogFilter) ([]model.Badge, error) {
	where, args := catalogWhere(f)
	query := fmt.Sprintf(`SELECT %s, %s FROM badges c WHERE %s ORDER BY c.name`, badgeColumns, r.h.holderCountSQL("c"), where)

	badges := []model.Badge{}
	if err := r.db.SelectContext(ctx, &badges, query, args...); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

func (r *badgeRepository) Update(ctx context.Context, b *model.Badge) error {
	query := `
		UPDATE badges
		SET name = $2, description = $3, icon = $4, color = $5, level = $6, requirements = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &b.UpdatedAt, query, b.ID, b.Name, b.Description, b.Icon, b.Color, b.Level, b.Requirements, b.IsActive)
	if err == sql.ErrNoRows {
		return model.ErrBadgeNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrBadgeNameExists
		}
		return fmt.Errorf("update badge: %w", err)
	}
	return nil
}

func (r *badgeRepository) LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Badge, error) {
	var b model.Badge
	if err := r.h.lockActive(ctx, tx, &b, "id, name, description, icon, color, level, requirements, is_active, created_at, updated_at", id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *badgeRepository) AddHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error {
	return r.h.addHolder(ctx, tx, badgeID, userID)
}

func (r *badgeRepository) RemoveHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error {
	return r.h.removeHolder(ctx, tx, badgeID, userID)
}

func (r *badgeRepository) ListHolders(ctx context.Context, badgeID int64) ([]model.Holder, error) {
	return r.h.listHolders(ctx, r.db, badgeID)
}

func (r *badgeRepository) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.h.idsForUser(ctx, r.db, userID)
}

func (r *badgeRepository) ListForUser(ctx context.Context, userID int64) ([]model.Badge, error) {
	if err := requireUser(ctx, r.db, userID); err != nil {
		return nil, err
	}
	badges := []model.Badge{}
	if err := r.db.SelectContext(ctx, &badges, r.h.forUserSQL(badgeColumns), userID); err != nil {
		return nil, fmt.Errorf("list badges for user: %w", err)
	}
	return badges, nil
}

func (r *badgeRepository) Deactivate(ctx context.Context, id int64) error {
	return r.h.deactivate(ctx, r.db, id)
}

func (r *badgeRepository) RemoveHolders(ctx context.Context, id int64, batch int) (int64, error) {
	return r.h.removeHolders(ctx, r.db, id, batch)
}

func (r *badgeRepository) DeleteIfNoHolders(ctx context.Context, id int64) (bool, error) {
	return r.h.deleteIfNoHolders(ctx, r.db, id)
}
