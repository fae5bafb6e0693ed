package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a comment. The caller bumps the post counter in the same tx.
func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error {
	query := `
		INSERT INTO post_comments (post_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := tx.QueryRowxContext(ctx, query, c.PostID, c.UserID, c.Content).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrPostNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := r.db.GetContext(ctx, &c, `SELECT id, post_id, user_id, content, created_at FROM post_comments WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

func (r *commentRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	return execExpectRow(ctx, tx, model.ErrCommentNotFound, "delete comment", `DELETE FROM post_comments WHERE id = $1`, id)
}

func (r *commentRepository) ListByPost(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error) {
	where := []string{"c.post_id = $1"}
	args := []interface{}{postID}
	where, args, err := keyset(where, args, cursor, "c.created_at", "c.id")
	if err != nil {
		return nil, nil, err
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(`
		SELECT c.id, c.post_id, c.user_id, c.content, c.created_at, u.username, u.country
		FROM post_comments c
		JOIN users u ON u.id = c.user_id
		WHERE %s
		ORDER BY date_trunc('second', c.created_at) DESC, c.id DESC
		LIMIT $%d
	`, strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		author := &model.UserSummary{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt, &author.Username, &author.Country); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		author.ID = c.UserID
		c.Author = author
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	var next *string
	if len(comments) > limit {
		comments = comments[:limit]
		last := comments[len(comments)-1]
		cur := formatCursor(last.CreatedAt, last.ID)
		next = &cur
	}
	return comments, next, nil
}

func (r *commentRepository) RemoveByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	query := `
		WITH removed AS (
			DELETE FROM post_comments WHERE user_id = $1
			RETURNING post_id
		), agg AS (
			SELECT post_id, COUNT(*) AS n FROM removed GROUP BY post_id
		), upd AS (
			UPDATE posts p
			SET comments = GREATEST(p.comments - agg.n, 0), updated_at = NOW()
			FROM agg
			WHERE p.id = agg.post_id
		)
		SELECT COUNT(*) FROM removed
	`
	var n int64
	if err := tx.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("remove user comments: %w", err)
	}
	return n, nil
}
