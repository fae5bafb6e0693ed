package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

// holderTable describes a catalog table and its join table of holders.
// Badges and achievements share every holder operation through it.
type holderTable struct {
	catalog  string // e.g. "badges"
	holders  string // e.g. "user_badges"
	fk       string // e.g. "badge_id"
	notFound error
	held     error
	notHeld  error
}

var (
	badgeHolders = holderTable{
		catalog:  "badges",
		holders:  "user_badges",
		fk:       "badge_id",
		notFound: model.ErrBadgeNotFound,
		held:     model.ErrBadgeAlreadyHeld,
		notHeld:  model.ErrBadgeNotHeld,
	}
	achievementHolders = holderTable{
		catalog:  "achievements",
		holders:  "user_achievements",
		fk:       "achievement_id",
		notFound: model.ErrAchievementNotFound,
		held:     model.ErrAchievementAlreadyHeld,
		notHeld:  model.ErrAchievementNotHeld,
	}
)

// holderCountSQL is the live holder count column for catalog selects.
func (h holderTable) holderCountSQL(alias string) string {
	return fmt.Sprintf("(SELECT COUNT(*) FROM %s x WHERE x.%s = %s.id) AS holder_count", h.holders, h.fk, alias)
}

func (h holderTable) deactivate(ctx context.Context, db *sqlx.DB, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, h.catalog)
	return execExpectRow(ctx, db, h.notFound, "deactivate "+h.catalog, query, id)
}

// removeHolders deletes one batch of holder rows. Each batch commits on its
// own so a large cascade never holds one long lock.
func (h holderTable) removeHolders(ctx context.Context, db *sqlx.DB, id int64, batch int) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE ctid IN (SELECT ctid FROM %[1]s WHERE %[2]s = $1 LIMIT $2)
	`, h.holders, h.fk)
	result, err := db.ExecContext(ctx, query, id, batch)
	if err != nil {
		return 0, fmt.Errorf("remove %s holders: %w", h.catalog, err)
	}
	return result.RowsAffected()
}

// deleteIfNoHolders is the guarded final phase: the catalog row goes only
// when the holder set is empty, so a dangling reference is impossible.
func (h holderTable) deleteIfNoHolders(ctx context.Context, db *sqlx.DB, id int64) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %[1]s c
		WHERE c.id = $1 AND NOT EXISTS (SELECT 1 FROM %[2]s x WHERE x.%[3]s = c.id)
	`, h.catalog, h.holders, h.fk)
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			// A holder was inserted between the check and the delete.
			return false, nil
		}
		return false, fmt.Errorf("delete %s: %w", h.catalog, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := db.GetContext(ctx, &exists, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, h.catalog), id); err != nil {
		return false, fmt.Errorf("check %s exists: %w", h.catalog, err)
	}
	if !exists {
		return false, h.notFound
	}
	return false, nil
}

func (h holderTable) lockActive(ctx context.Context, tx *sqlx.Tx, dest interface{}, columns string, id int64) error {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND is_active FOR SHARE`, columns, h.catalog)
	err := tx.GetContext(ctx, dest, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h.notFound
		}
		return fmt.Errorf("lock %s: %w", h.catalog, err)
	}
	return nil
}

func (h holderTable) addHolder(ctx context.Context, tx *sqlx.Tx, id, userID int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, user_id) VALUES ($1, $2)`, h.holders, h.fk)
	if _, err := tx.ExecContext(ctx, query, id, userID); err != nil {
		if isUniqueViolation(err) {
			return h.held
		}
		if isForeignKeyViolation(err) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("award %s: %w", h.catalog, err)
	}
	return nil
}

func (h holderTable) removeHolder(ctx context.Context, tx *sqlx.Tx, id, userID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, h.holders, h.fk)
	return execExpectRow(ctx, tx, h.notHeld, "revoke "+h.catalog, query, id, userID)
}

func (h holderTable) listHolders(ctx context.Context, db *sqlx.DB, id int64) ([]model.Holder, error) {
	query := fmt.Sprintf(`
		SELECT x.user_id, u.username, x.awarded_at
		FROM %s x
		JOIN users u ON u.id = x.user_id
		WHERE x.%s = $1
		ORDER BY x.awarded_at
	`, h.holders, h.fk)
	holders := []model.Holder{}
	if err := db.SelectContext(ctx, &holders, query, id); err != nil {
		return nil, fmt.Errorf("list %s holders: %w", h.catalog, err)
	}
	return holders, nil
}

func (h holderTable) idsForUser(ctx context.Context, db *sqlx.DB, userID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY awarded_at`, h.fk, h.holders)
	ids := []int64{}
	if err := db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list %s for user: %w", h.catalog, err)
	}
	return ids, nil
}

// forUserSQL selects the catalog entries a user holds, oldest award first.
func (h holderTable) forUserSQL(columns string) string {
	return fmt.Sprintf(`
		SELECT %s, %s
		FROM %s c
		JOIN %s x ON x.%s = c.id
		WHERE x.user_id = $1
		ORDER BY x.awarded_at, c.id
	`, columns, h.holderCountSQL("c"), h.catalog, h.holders, h.fk)
}

// requireUser tells "holds nothing" apart from "no such user".
func requireUser(ctx context.Context, db *sqlx.DB, userID int64) error {
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return model.ErrUserNotFound
	}
	return nil
}

// catalogWhere builds the level / active filter shared by both listings.
func catalogWhere(f model.CatalogFilter) (string, []interface{}) {
	where := "TRUE"
	var args []interface{}
	if f.Level != "" {
		args = append(args, f.Level)
		where += fmt.Sprintf(" AND c.level = $%d", len(args))
	}
	if f.ActiveOnly {
		where += " AND c.is_active"
	}
	return where, args
}
