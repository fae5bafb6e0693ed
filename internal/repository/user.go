package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"geojungle/internal/model"
)

const userColumns = `id, username, email, password_hashed, country, score, level, post_count,
	quizzes_completed, games_played, is_admin, is_mini_admin, community_id, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (username, email, password_hashed, country)
		VALUES ($1, $2, $3, $4)
		RETURNING id, score, level, post_count, quizzes_completed, games_played, created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query, u.Username, u.Email, u.PasswordHashed, u.Country)
	err := row.Scan(&u.ID, &u.Score, &u.Level, &u.PostCount, &u.QuizzesCompleted, &u.GamesPlayed, &u.JoinDate, &u.UpdatedAt)
	if err != nil {
		if pqErr, ok := pgError(err); ok && pqErr.Code == pgUniqueViolation {
			if strings.Contains(pqErr.Constraint, "email") {
				return model.ErrEmailExists
			}
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *userRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error) {
	return r.getOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *userRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u, query, args...)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// List pages through users newest first, optionally filtered by a username
// or email substring.
func (r *userRepository) List(ctx context.Context, query string, cursor *string, limit int) ([]model.User, *string, error) {
	where := []string{"TRUE"}
	var args []interface{}
	if query != "" {
		args = append(args, likePattern(query))
		where = append(where, fmt.Sprintf(`(username ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\')`, len(args), len(args)))
	}
	where, args, err := keyset(where, args, cursor, "created_at", "id")
	if err != nil {
		return nil, nil, err
	}
	args = append(args, limit+1)

	sqlQuery := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE %s
		ORDER BY date_trunc('second', created_at) DESC, id DESC
		LIMIT $%d
	`, userColumns, strings.Join(where, " AND "), len(args))

	var users []model.User
	if err := r.db.SelectContext(ctx, &users, sqlQuery, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to list users: %w", err)
	}

	var next *string
	if len(users) > limit {
		users = users[:limit]
		last := users[len(users)-1]
		c := formatCursor(last.JoinDate, last.ID)
		next = &c
	}
	return users, next, nil
}

func (r *userRepository) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	query := `
		SELECT u.id, u.post_count, u.score, u.level, u.is_mini_admin, u.community_id,
		       u.games_played, u.quizzes_completed,
		       (SELECT COUNT(*) FROM user_badges ub WHERE ub.user_id = u.id) AS badge_count,
		       (SELECT COUNT(*) FROM user_achievements ua WHERE ua.user_id = u.id) AS achievement_count
		FROM users u
		WHERE u.id = $1
	`
	var stats model.UserStats
	err := r.db.GetContext(ctx, &stats, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	out := make(map[int64]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []model.UserSummary
	err := r.db.SelectContext(ctx, &rows, `SELECT id, username, country FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}
	for _, s := range rows {
		out[s.ID] = s
	}
	return out, nil
}

// AdjustPostCount reads the previous value under the row lock so the clamp
// can be reported by the caller.
func (r *userRepository) AdjustPostCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) (int, error) {
	query := `
		WITH prev AS (
			SELECT id, post_count FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET post_count = GREATEST(prev.post_count + $2, 0), updated_at = NOW()
		FROM prev
		WHERE u.id = prev.id
		RETURNING prev.post_count
	`
	var prev int
	err := tx.GetContext(ctx, &prev, query, userID, delta)
	if err == sql.ErrNoRows {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust post count: %w", err)
	}
	return prev, nil
}

func (r *userRepository) ApplyScore(ctx context.Context, tx *sqlx.Tx, userID int64, delta int64, gamesDelta int) (*model.ScoreChange, error) {
	query := `
		UPDATE users
		SET score = score + $2,
		    games_played = GREATEST(games_played + $3, 0),
		    level = GREATEST(level, 1 + GREATEST(score + $2, 0) / $4),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, score - $2 AS score_before, score AS score_after, level
	`
	var change model.ScoreChange
	err := tx.GetContext(ctx, &change, query, userID, delta, gamesDelta, model.PointsPerLevel)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply score: %w", err)
	}
	return &change, nil
}

func (r *userRepository) AdjustQuizzesCompleted(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	query := `UPDATE users SET quizzes_completed = GREATEST(quizzes_completed + $2, 0), updated_at = NOW() WHERE id = $1`
	return execExpectRow(ctx, tx, model.ErrUserNotFound, "adjust quizzes completed", query, userID, delta)
}

func (r *userRepository) SetMembership(ctx context.Context, tx *sqlx.Tx, userID int64, communityID *int64, isMiniAdmin bool) error {
	query := `UPDATE users SET community_id = $2, is_mini_admin = $3, updated_at = NOW() WHERE id = $1`
	return execExpectRow(ctx, tx, model.ErrUserNotFound, "set membership", query, userID, communityID, isMiniAdmin)
}

func (r *userRepository) LockMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) ([]int64, error) {
	var ids []int64
	err := tx.SelectContext(ctx, &ids, `SELECT id FROM users WHERE community_id = $1 ORDER BY id FOR UPDATE`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock members: %w", err)
	}
	return ids, nil
}

func (r *userRepository) DetachMembers(ctx context.Context, tx *sqlx.Tx, communityID int64, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE users SET community_id = NULL, is_mini_admin = FALSE, updated_at = NOW()
		WHERE community_id = $1 AND id = ANY($2)
	`
	result, err := tx.ExecContext(ctx, query, communityID, pq.Array(userIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to detach members: %w", err)
	}
	return result.RowsAffected()
}

func (r *userRepository) CountMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE community_id = $1`, communityID); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

func (r *userRepository) ListMembers(ctx context.Context, communityID int64) ([]model.User, error) {
	users := []model.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE community_id = $1 ORDER BY username`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return users, nil
}

// Scores returns users by score, highest first. limit <= 0 returns everyone.
func (r *userRepository) Scores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT id, username, score FROM users ORDER BY score DESC, id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var entries []model.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (r *userRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	return execExpectRow(ctx, tx, model.ErrUserNotFound, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// execExpectRow runs a statement that must touch at least one row and maps
// zero rows to notFound.
func execExpectRow(ctx context.Context, tx sqlx.ExecerContext, notFound error, what, query string, args ...interface{}) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
