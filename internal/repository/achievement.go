package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const achievementColumns = `c.id, c.name, c.description, c.icon, c.color, c.level, c.points, c.requirements, c.is_active, c.created_at, c.updated_at`

type achievementRepository struct {
	db *sqlx.DB
	h  holderTable
}

func NewAchievementRepository(db *sqlx.DB) AchievementRepository {
	return &achievementRepository{db: db, h: achievementHolders}
}

func (r *achievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	query := `
		INSERT INTO achievements (name, description, icon, color, level, points, requirements, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, a.Name, a.Description, a.Icon, a.Color, a.Level, a.Points, a.Requirements, a.IsActive).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAchievementNameExists
		}
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (r *achievementRepository) GetByID(ctx context.Context, id int64) (*model.Achievement, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM achievements c WHERE c.id = $1`, achievementColumns, r.h.holderCountSQL("c"))
	var a model.Achievement
	err := r.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrAchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	return &a, nil
}

func (r *achievementRepository) List(ctx context.Context, f model.CatalogFilter) ([]model.Achievement, error) {
	where, args := catalogWhere(f)
	query := fmt.Sprintf(`SELECT %s, %s FROM achievements c WHERE %s ORDER BY c.points DESC, c.name`, achievementColumns, r.h.holderCountSQL("c"), where)

	achievements := []model.Achievement{}
	if err := r.db.SelectContext(ctx, &achievements, query, args...); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return achievements, nil
}

func (r *achievementRepository) Update(ctx context.Context, a *model.Achievement) error {
	query := `
		UPDATE achievements
		SET name = $2, description = $3, icon = $4, color = $5, level = $6, points = $7, requirements = $8,
		    is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &a.UpdatedAt, query, a.ID, a.Name, a.Description, a.Icon, a.Color, a.Level, a.Points, a.Requirements, a.IsActive)
	if err == sql.ErrNoRows {
		return model.ErrAchievementNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAchievementNameExists
		}
		return fmt.Errorf("update achievement: %w", err)
	}
	return nil
}

func (r *achievementRepository) LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Achievement, error) {
	var a model.Achievement
	if err := r.h.lockActive(ctx, tx, &a, "id, name, description, icon, color, level, points, requirements, is_active, created_at, updated_at", id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *achievementRepository) AddHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error {
	return r.h.addHolder(ctx, tx, achievementID, userID)
}

func (r *achievementRepository) RemoveHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error {
	return r.h.removeHolder(ctx, tx, achievementID, userID)
}

func (r *achievementRepository) ListHolders(ctx context.Context, achievementID int64) ([]model.Holder, error) {
	return r.h.listHolders(ctx, r.db, achievementID)
}

func (r *achievementRepository) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.h.idsForUser(ctx, r.db, userID)
}

func (r *achievementRepository) ListForUser(ctx context.Context, userID int64) ([]model.Achievement, error) {
	if err := requireUser(ctx, r.db, userID); err != nil {
		return nil, err
	}
	achievements := []model.Achievement{}
	if err := r.db.SelectContext(ctx, &achievements, r.h.forUserSQL(achievementColumns), userID); err != nil {
		return nil, fmt.Errorf("list achievements for user: %w", err)
	}
	return achievements, nil
}

func (r *achievementRepository) Deactivate(ctx context.Context, id int64) error {
	return r.h.deactivate(ctx, r.db, id)
}

func (r *achievementRepository) RemoveHolders(ctx context.Context, id int64, batch int) (int64, error) {
	return r.h.removeHolders(ctx, r.db, id, batch)
}

func (r *achievementRepository) DeleteIfNoHolders(ctx context.Context, id int64) (bool, error) {
	return r.h.deleteIfNoHolders(ctx, r.db, id)
}
