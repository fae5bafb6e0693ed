package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

const gameColumns = `id, name, description, type, difficulty, settings, content, is_active,
	total_plays, total_completions, average_score, created_at, updated_at`

type gameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) Create(ctx context.Context, g *model.Game) error {
	query := `
		INSERT INTO games (name, description, type, difficulty, settings, content, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, g.Name, g.Description, g.Type, g.Difficulty, g.Settings, g.Content, g.IsActive).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *gameRepository) GetByID(ctx context.Context, id int64) (*model.Game, error) {
	var g model.Game
	err := r.db.GetContext(ctx, &g, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	g.FillCompletionRate()
	return &g, nil
}

func (r *gameRepository) List(ctx context.Context, activeOnly bool) ([]model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	games := []model.Game{}
	if err := r.db.SelectContext(ctx, &games, query); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	for i := range games {
		games[i].FillCompletionRate()
	}
	return games, nil
}

func (r *gameRepository) Update(ctx context.Context, g *model.Game) error {
	query := `
		UPDATE games
		SET name = $2, description = $3, type = $4, difficulty = $5, settings = $6, content = $7, is_active = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &g.UpdatedAt, query, g.ID, g.Name, g.Description, g.Type, g.Difficulty, g.Settings, g.Content, g.IsActive)
	if err == sql.ErrNoRows {
		return model.ErrGameNotFound
	}
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return nil
}

// Delete removes the catalog entry. Recorded sessions keep their score and
// lose only the game link (ON DELETE SET NULL).
func (r *gameRepository) Delete(ctx context.Context, id int64) error {
	return execExpectRow(ctx, r.db, model.ErrGameNotFound, "delete game", `DELETE FROM games WHERE id = $1`, id)
}

// RecordPlay updates plays, completions and the running mean in one
// statement; every right-hand side sees the pre-update row.
func (r *gameRepository) RecordPlay(ctx context.Context, tx *sqlx.Tx, gameID, score int64) error {
	query := `
		UPDATE games
		SET total_completions = total_completions +
		        CASE WHEN $2::bigint >= COALESCE((settings->>'requiredScore')::bigint, 0) THEN 1 ELSE 0 END,
		    average_score = (average_score * total_plays + $2::bigint) / (total_plays + 1),
		    total_plays = total_plays + 1,
		    updated_at = NOW()
		WHERE id = $1
	`
	return execExpectRow(ctx, tx, model.ErrGameNotFound, "record game play", query, gameID, score)
}

const sessionColumns = `id, player_id, player_username, game_id, game_type, game_name, score, duration,
	difficulty, country, created_at`

type gameSessionRepository struct {
	db *sqlx.DB
}

func NewGameSessionRepository(db *sqlx.DB) GameSessionRepository {
	return &gameSessionRepository{db: db}
}

func (r *gameSessionRepository) Create(ctx context.Context, tx *sqlx.Tx, s *model.GameSession) error {
	query := `
		INSERT INTO game_sessions (player_id, player_username, game_id, game_type, game_name, score, duration, difficulty, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		s.PlayerID, s.PlayerUsername, s.GameID, s.GameType, s.GameName, s.Score, s.Duration, s.Difficulty, s.Country,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

func (r *gameSessionRepository) GetByID(ctx context.Context, id int64) (*model.GameSession, error) {
	var s model.GameSession
	err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrGameSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game session: %w", err)
	}
	return &s, nil
}

func (r *gameSessionRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) (*model.GameSession, error) {
	var s model.GameSession
	err := tx.GetContext(ctx, &s, `DELETE FROM game_sessions WHERE id = $1 RETURNING `+sessionColumns, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrGameSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete game session: %w", err)
	}
	return &s, nil
}

// List returns sessions newest first. Type and difficulty match exactly,
// country ignores case.
func (r *gameSessionRepository) List(ctx context.Context, f model.SessionFilter) ([]model.GameSession, *string, error) {
	where := []string{"TRUE"}
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.PlayerID != nil {
		add("player_id = $%d", *f.PlayerID)
	}
	if f.GameType != "" {
		add("game_type = $%d", f.GameType)
	}
	if f.Difficulty != "" {
		add("difficulty = $%d", f.Difficulty)
	}
	if f.Country != "" {
		add("lower(country) = lower($%d)", f.Country)
	}
	where, args, err := keyset(where, args, f.Cursor, "created_at", "id")
	if err != nil {
		return nil, nil, err
	}
	args = append(args, f.Limit+1)

	query := fmt.Sprintf(`
		SELECT %s FROM game_sessions
		WHERE %s
		ORDER BY date_trunc('second', created_at) DESC, id DESC
		LIMIT $%d
	`, sessionColumns, strings.Join(where, " AND "), len(args))

	sessions := []model.GameSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list game sessions: %w", err)
	}

	var next *string
	if len(sessions) > f.Limit {
		sessions = sessions[:f.Limit]
		last := sessions[len(sessions)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		next = &c
	}
	return sessions, next, nil
}

func (r *gameSessionRepository) DeleteByPlayer(ctx context.Context, tx *sqlx.Tx, playerID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM game_sessions WHERE player_id = $1`, playerID)
	if err != nil {
		return 0, fmt.Errorf("delete player sessions: %w", err)
	}
	return result.RowsAffected()
}
