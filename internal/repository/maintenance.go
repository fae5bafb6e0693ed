package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

type maintenanceRepository struct {
	db *sqlx.DB
}

func NewMaintenanceRepository(db *sqlx.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) Overview(ctx context.Context) (*model.Overview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM posts WHERE NOT is_deleted) AS active_posts,
			(SELECT COUNT(*) FROM posts WHERE is_deleted) AS deleted_posts,
			(SELECT COUNT(*) FROM communities) AS communities,
			(SELECT COUNT(*) FROM mini_admins) AS mini_admins,
			(SELECT COUNT(*) FROM badges) AS badges,
			(SELECT COUNT(*) FROM achievements) AS achievements,
			(SELECT COUNT(*) FROM game_sessions) AS game_sessions,
			(SELECT COUNT(*) FROM quiz_attempts) AS quiz_attempts,
			(SELECT COALESCE(SUM(score), 0) FROM users) AS total_score
	`
	var o model.Overview
	if err := r.db.GetContext(ctx, &o, query); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	return &o, nil
}

// Each reconcile statement rewrites only rows whose cached value differs
// from the authoritative set, so RowsAffected is the drift count.

func (r *maintenanceRepository) ReconcilePostCounts(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	return execCount(ctx, tx, "reconcile post counts", `
		UPDATE users u
		SET post_count = t.n, updated_at = NOW()
		FROM (
			SELECT u2.id, COUNT(p.id) AS n
			FROM users u2
			LEFT JOIN posts p ON p.author_id = u2.id AND NOT p.is_deleted
			GROUP BY u2.id
		) t
		WHERE u.id = t.id AND u.post_count <> t.n
	`)
}

func (r *maintenanceRepository) ReconcileMemberCounts(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	return execCount(ctx, tx, "reconcile member counts", `
		UPDATE communities c
		SET member_count = t.n, updated_at = NOW()
		FROM (
			SELECT c2.id, COUNT(u.id) AS n
			FROM communities c2
			LEFT JOIN users u ON u.community_id = c2.id
			GROUP BY c2.id
		) t
		WHERE c.id = t.id AND c.member_count <> t.n
	`)
}

func (r *maintenanceRepository) ReconcileEngagement(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	return execCount(ctx, tx, "reconcile engagement", `
		UPDATE posts p
		SET likes = t.l, dislikes = t.d, comments = t.c, updated_at = NOW()
		FROM (
			SELECT p2.id,
			       (SELECT COUNT(*) FROM post_reactions r WHERE r.post_id = p2.id AND r.reaction = 'like') AS l,
			       (SELECT COUNT(*) FROM post_reactions r WHERE r.post_id = p2.id AND r.reaction = 'dislike') AS d,
			       (SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p2.id) AS c
			FROM posts p2
		) t
		WHERE p.id = t.id AND (p.likes <> t.l OR p.dislikes <> t.d OR p.comments <> t.c)
	`)
}

// ReconcileMiniAdminFlags sets is_mini_admin from the mini_admins table.
func (r *maintenanceRepository) ReconcileMiniAdminFlags(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	return execCount(ctx, tx, "reconcile mini-admin flags", `
		UPDATE users u
		SET is_mini_admin = EXISTS (SELECT 1 FROM mini_admins m WHERE m.user_id = u.id), updated_at = NOW()
		WHERE u.is_mini_admin <> EXISTS (SELECT 1 FROM mini_admins m WHERE m.user_id = u.id)
	`)
}

func (r *maintenanceRepository) ReconcileQuizzesCompleted(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	return execCount(ctx, tx, "reconcile quizzes completed", `
		UPDATE users u
		SET quizzes_completed = t.n, updated_at = NOW()
		FROM (
			SELECT u2.id, COUNT(a.id) AS n
			FROM users u2
			LEFT JOIN quiz_attempts a ON a.user_id = u2.id
			GROUP BY u2.id
		) t
		WHERE u.id = t.id AND u.quizzes_completed <> t.n
	`)
}

func execCount(ctx context.Context, tx *sqlx.Tx, what, query string) (int64, error) {
	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return result.RowsAffected()
}
