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

const postColumns = `p.id, p.kind, p.category, p.title, p.body, p.country, p.author_id,
	u.username AS author_username, p.image_url, p.image_key, p.image_content_type,
	p.likes, p.dislikes, p.comments, p.is_deleted, p.deletion_reason, p.deleted_by, p.deleted_at,
	p.created_at, p.updated_at`

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, tx *sqlx.Tx, p *model.Post) error {
	query := `
		INSERT INTO posts (kind, category, title, body, country, author_id, image_url, image_key, image_content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, likes, dislikes, comments, is_deleted, created_at, updated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		p.Kind, p.Category, p.Title, p.Body, p.Country, p.AuthorID,
		p.ImageURL, p.ImageKey, p.ImageContentType,
	).Scan(&p.ID, &p.Likes, &p.Dislikes, &p.Comments, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64, includeDeleted bool) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = $1`
	if !includeDeleted {
		query += ` AND NOT p.is_deleted`
	}
	return r.getOne(ctx, r.db, query, id)
}

func (r *postRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = $1 FOR UPDATE OF p`
	return r.getOne(ctx, tx, query, id)
}

func (r *postRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*model.Post, error) {
	var post model.Post
	err := sqlx.GetContext(ctx, q, &post, query, args...)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// List returns posts newest first using the "id:unixts" cursor.
func (r *postRepository) List(ctx context.Context, f model.PostFilter) ([]model.Post, *string, error) {
	where := []string{"TRUE"}
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if !f.IncludeDeleted {
		where = append(where, "NOT p.is_deleted")
	}
	if f.Kind != "" {
		add("p.kind = $%d", f.Kind)
	}
	if f.Category != "" {
		add("p.category = $%d", f.Category)
	}
	if f.Country != "" {
		add("lower(p.country) = lower($%d)", f.Country)
	}
	if f.AuthorID != 0 {
		add("p.author_id = $%d", f.AuthorID)
	}
	if f.Query != "" {
		args = append(args, likePattern(f.Query))
		where = append(where, fmt.Sprintf(`(p.title ILIKE $%d ESCAPE '\' OR p.body ILIKE $%d ESCAPE '\')`, len(args), len(args)))
	}

	where, args, err := keyset(where, args, f.Cursor, "p.created_at", "p.id")
	if err != nil {
		return nil, nil, err
	}
	args = append(args, f.Limit+1)

	query := fmt.Sprintf(`
		SELECT %s
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE %s
		ORDER BY date_trunc('second', p.created_at) DESC, p.id DESC
		LIMIT $%d
	`, postColumns, strings.Join(where, " AND "), len(args))

	var posts []model.Post
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list posts: %w", err)
	}

	var next *string
	if len(posts) > f.Limit {
		posts = posts[:f.Limit]
		last := posts[len(posts)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		next = &c
	}
	return posts, next, nil
}

func (r *postRepository) Update(ctx context.Context, tx *sqlx.Tx, p *model.Post) error {
	query := `
		UPDATE posts SET title = $2, body = $3, category = $4, country = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.GetContext(ctx, &p.UpdatedAt, query, p.ID, p.Title, p.Body, p.Category, p.Country)
	if err == sql.ErrNoRows {
		return model.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (r *postRepository) MarkDeleted(ctx context.Context, tx *sqlx.Tx, id, deletedBy int64, reason *string) error {
	query := `
		UPDATE posts
		SET is_deleted = TRUE, deletion_reason = $2, deleted_by = $3, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`
	return execExpectRow(ctx, tx, model.ErrPostNotFound, "delete post", query, id, reason, deletedBy)
}

func (r *postRepository) Restore(ctx context.Context, tx *sqlx.Tx, id int64) error {
	query := `
		UPDATE posts
		SET is_deleted = FALSE, deletion_reason = NULL, deleted_by = NULL, deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND is_deleted
	`
	return execExpectRow(ctx, tx, model.ErrPostNotDeleted, "restore post", query, id)
}

func (r *postRepository) GetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64) (model.Reaction, error) {
	var reaction model.Reaction
	err := tx.GetContext(ctx, &reaction, `SELECT reaction FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err == sql.ErrNoRows {
		return model.ReactionNone, nil
	}
	if err != nil {
		return model.ReactionNone, fmt.Errorf("get reaction: %w", err)
	}
	return reaction, nil
}

func (r *postRepository) SetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64, reaction model.Reaction) error {
	if reaction == model.ReactionNone {
		_, err := tx.ExecContext(ctx, `DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO post_reactions (post_id, user_id, reaction)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction, created_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, postID, userID, reaction); err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

func (r *postRepository) ApplyEngagementDelta(ctx context.Context, tx *sqlx.Tx, postID int64, likes, dislikes, comments int) error {
	query := `
		UPDATE posts
		SET likes = likes + $2, dislikes = dislikes + $3, comments = comments + $4, updated_at = NOW()
		WHERE id = $1
	`
	return execExpectRow(ctx, tx, model.ErrPostNotFound, "update engagement", query, postID, likes, dislikes, comments)
}

func (r *postRepository) GetReactors(ctx context.Context, postID int64) ([]model.UserSummary, []model.UserSummary, error) {
	var rows []struct {
		model.UserSummary
		Reaction model.Reaction `db:"reaction"`
	}
	query := `
		SELECT u.id, u.username, u.country, pr.reaction
		FROM post_reactions pr
		JOIN users u ON u.id = pr.user_id
		WHERE pr.post_id = $1
		ORDER BY pr.created_at
	`
	if err := r.db.SelectContext(ctx, &rows, query, postID); err != nil {
		return nil, nil, fmt.Errorf("get reactors: %w", err)
	}

	liked := []model.UserSummary{}
	disliked := []model.UserSummary{}
	for _, row := range rows {
		if row.Reaction == model.ReactionLike {
			liked = append(liked, row.UserSummary)
		} else {
			disliked = append(disliked, row.UserSummary)
		}
	}
	return liked, disliked, nil
}

func (r *postRepository) GetViewerReactions(ctx context.Context, userID int64, postIDs []int64) (map[int64]model.Reaction, error) {
	result := make(map[int64]model.Reaction)
	if len(postIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		PostID   int64          `db:"post_id"`
		Reaction model.Reaction `db:"reaction"`
	}
	query := `SELECT post_id, reaction FROM post_reactions WHERE user_id = $1 AND post_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &rows, query, userID, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("get viewer reactions: %w", err)
	}
	for _, row := range rows {
		result[row.PostID] = row.Reaction
	}
	return result, nil
}

func (r *postRepository) RemoveUserReactions(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	query := `
		WITH removed AS (
			DELETE FROM post_reactions WHERE user_id = $1
			RETURNING post_id, reaction
		), agg AS (
			SELECT post_id,
			       COUNT(*) FILTER (WHERE reaction = 'like') AS l,
			       COUNT(*) FILTER (WHERE reaction = 'dislike') AS d
			FROM removed
			GROUP BY post_id
		), upd AS (
			UPDATE posts p
			SET likes = GREATEST(p.likes - agg.l, 0), dislikes = GREATEST(p.dislikes - agg.d, 0), updated_at = NOW()
			FROM agg
			WHERE p.id = agg.post_id
		)
		SELECT COUNT(*) FROM removed
	`
	var n int64
	if err := tx.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("remove user reactions: %w", err)
	}
	return n, nil
}

func (r *postRepository) ListImageKeysByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) ([]string, error) {
	var keys []string
	err := tx.SelectContext(ctx, &keys, `SELECT image_key FROM posts WHERE author_id = $1 AND image_key IS NOT NULL`, authorID)
	if err != nil {
		return nil, fmt.Errorf("list image keys: %w", err)
	}
	return keys, nil
}

func (r *postRepository) DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, fmt.Errorf("delete posts by author: %w", err)
	}
	return result.RowsAffected()
}
