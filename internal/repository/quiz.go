package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const quizColumns = `id, title, description, difficulty, questions, created_at, updated_at`

type quizRepository struct {
	db *sqlx.DB
}

func NewQuizRepository(db *sqlx.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) Create(ctx context.Context, q *model.Quiz) error {
	query := `
		INSERT INTO quizzes (title, description, difficulty, questions)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, q.Title, q.Description, q.Difficulty, q.Questions).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (r *quizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	var q model.Quiz
	err := r.db.GetContext(ctx, &q, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return &q, nil
}

func (r *quizRepository) List(ctx context.Context) ([]model.Quiz, error) {
	quizzes := []model.Quiz{}
	if err := r.db.SelectContext(ctx, &quizzes, `SELECT `+quizColumns+` FROM quizzes ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

func (r *quizRepository) Update(ctx context.Context, q *model.Quiz) error {
	query := `
		UPDATE quizzes SET title = $2, description = $3, difficulty = $4, questions = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &q.UpdatedAt, query, q.ID, q.Title, q.Description, q.Difficulty, q.Questions)
	if err == sql.ErrNoRows {
		return model.ErrQuizNotFound
	}
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return nil
}

func (r *quizRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) (int64, error) {
	// FOR UPDATE conflicts with the key-share lock an attempt insert takes
	// on the quiz, so no attempt can land between the count and the delete.
	var locked int64
	err := tx.GetContext(ctx, &locked, `SELECT id FROM quizzes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrQuizNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock quiz: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users u
		SET quizzes_completed = GREATEST(u.quizzes_completed - a.n, 0), updated_at = NOW()
		FROM (
			SELECT user_id, COUNT(*) AS n
			FROM quiz_attempts
			WHERE quiz_id = $1
			GROUP BY user_id
		) a
		WHERE u.id = a.user_id
	`, id)
	if err != nil {
		return 0, fmt.Errorf("reverse quiz completions: %w", err)
	}
	reversed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_attempts WHERE quiz_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete quiz attempts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete quiz: %w", err)
	}
	return reversed, nil
}

func (r *quizRepository) CreateAttempt(ctx context.Context, tx *sqlx.Tx, a *model.QuizAttempt) error {
	query := `
		INSERT INTO quiz_attempts (user_id, quiz_id, score, total)
		VALUES ($1, $2, $3, $4)
		RETURNING id, attempted_at
	`
	err := tx.QueryRowxContext(ctx, query, a.UserID, a.QuizID, a.Score, a.Total).Scan(&a.ID, &a.AttemptedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.NewError(model.KindNotFound, "user or quiz not found")
		}
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

func (r *quizRepository) DeleteAttempt(ctx context.Context, tx *sqlx.Tx, id int64) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := tx.GetContext(ctx, &a, `DELETE FROM quiz_attempts WHERE id = $1 RETURNING id, user_id, quiz_id, score, total, attempted_at`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrQuizAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete quiz attempt: %w", err)
	}
	return &a, nil
}

func (r *quizRepository) DeleteAttemptsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM quiz_attempts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user quiz attempts: %w", err)
	}
	return result.RowsAffected()
}
