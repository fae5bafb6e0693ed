package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// GameSettings tune a catalog game.
type GameSettings struct {
	TimeLimit         int `json:"timeLimit" validate:"gte=0"`
	MaxAttempts       int `json:"maxAttempts" validate:"gte=0"`
	PointsPerQuestion int `json:"pointsPerQuestion" validate:"gte=0"`
	RequiredScore     int `json:"requiredScore" validate:"gte=0"`
}

// GameQuestion is one question in a game's content.
type GameQuestion struct {
	Question      string   `json:"question" validate:"required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	Options       []string `json:"options"`
	Points        int      `json:"points" validate:"gte=0"`
}

// GameContent holds the playable material of a catalog game.
type GameContent struct {
	Questions        []GameQuestion `json:"questions" validate:"dive"`
	Categories       []string       `json:"categories"`
	DifficultyLevels []string       `json:"difficultyLevels"`
}

// Value implements driver.Valuer for the JSONB column.
func (s GameSettings) Value() (driver.Value, error) { return json.Marshal(s) }

// Scan implements sql.Scanner for the JSONB column.
func (s *GameSettings) Scan(src any) error { return scanJSON(src, s) }

// Value implements driver.Valuer for the JSONB column.
func (c GameContent) Value() (driver.Value, error) { return json.Marshal(c) }

// Scan implements sql.Scanner for the JSONB column.
func (c *GameContent) Scan(src any) error { return scanJSON(src, c) }

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// GameStatistics are maintained atomically by session recording.
type GameStatistics struct {
	TotalPlays       int     `db:"total_plays" json:"totalPlays"`
	TotalCompletions int     `db:"total_completions" json:"-"`
	AverageScore     float64 `db:"average_score" json:"averageScore"`
	CompletionRate   float64 `db:"-" json:"completionRate"`
}

// Game is a catalog entry.
type Game struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	Type        string       `db:"type" json:"type"`
	Difficulty  string       `db:"difficulty" json:"difficulty"`
	Settings    GameSettings `db:"settings" json:"settings"`
	Content     GameContent  `db:"content" json:"content"`
	IsActive    bool         `db:"is_active" json:"isActive"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`

	GameStatistics `json:"statistics"`
}

// FillCompletionRate derives the percentage from the stored counters.
func (g *Game) FillCompletionRate() {
	if g.TotalPlays == 0 {
		g.CompletionRate = 0
		return
	}
	g.CompletionRate = float64(g.TotalCompletions) / float64(g.TotalPlays) * 100
}

// GameRequest is used for both create and full update.
type GameRequest struct {
	Name        string       `json:"name" validate:"required,max=100"`
	Description string       `json:"description" validate:"required,max=1000"`
	Type        string       `json:"type" validate:"required,oneof=spelling population area guess-country wordle"`
	Difficulty  string       `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Settings    GameSettings `json:"settings"`
	Content     GameContent  `json:"content"`
	IsActive    *bool        `json:"isActive"`
}

// GameSession is an immutable record of one play.
type GameSession struct {
	ID             int64     `db:"id" json:"id"`
	PlayerID       int64     `db:"player_id" json:"playerId"`
	PlayerUsername string    `db:"player_username" json:"playerUsername"`
	GameID         *int64    `db:"game_id" json:"gameId,omitempty"`
	GameType       string    `db:"game_type" json:"gameType"`
	GameName       string    `db:"game_name" json:"gameName"`
	Score          int64     `db:"score" json:"score"`
	Duration       int       `db:"duration" json:"duration"`
	Difficulty     string    `db:"difficulty" json:"difficulty"`
	Country        *string   `db:"country" json:"country,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// RecordSessionRequest is the body for recording a finished play.
type RecordSessionRequest struct {
	PlayerID   int64   `json:"playerId" validate:"omitempty,gt=0"`
	GameID     *int64  `json:"gameId" validate:"omitempty,gt=0"`
	GameType   string  `json:"gameType" validate:"required,oneof=quiz exploration challenge tournament"`
	GameName   string  `json:"gameName" validate:"required,max=100"`
	Score      int64   `json:"score" validate:"gte=0"`
	Duration   int     `json:"duration" validate:"gte=0"`
	Difficulty string  `json:"difficulty" validate:"required,oneof=easy medium hard expert"`
	Country    *string `json:"country" validate:"omitempty,max=80"`
}

// SessionResult is returned after recording or deleting a session.
type SessionResult struct {
	Session   *GameSession `json:"session"`
	UserScore int64        `json:"userScore"`
	UserLevel int          `json:"userLevel"`
}

// SessionFilter narrows session listings. Empty fields match everything.
type SessionFilter struct {
	PlayerID   *int64
	GameType   string
	Difficulty string
	Country    string
	Cursor     *string
	Limit      int
}

var (
	sessionGameTypes    = []string{"quiz", "exploration", "challenge", "tournament"}
	sessionDifficulties = []string{"easy", "medium", "hard", "expert"}
)

// Validate rejects a type or difficulty no session can carry.
func (f SessionFilter) Validate() error {
	if f.GameType != "" && !slices.Contains(sessionGameTypes, f.GameType) {
		return Validationf("gameType must be one of %v", sessionGameTypes)
	}
	if f.Difficulty != "" && !slices.Contains(sessionDifficulties, f.Difficulty) {
		return Validationf("difficulty must be one of %v", sessionDifficulties)
	}
	return nil
}

// SessionListResponse is the paginated session list.
type SessionListResponse struct {
	Sessions   []GameSession `json:"sessions"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// Session list constants
const (
	DefaultSessionPageSize = 20
	MaxSessionPageSize     = 100
)

// ScoreChange is the before/after of an attributed score update.
type ScoreChange struct {
	UserID int64 `db:"id"`
	Before int64 `db:"score_before"`
	After  int64 `db:"score_after"`
	Level  int   `db:"level"`
}

// Game errors
var (
	ErrGameNotFound        = NewError(KindNotFound, "game not found")
	ErrGameInactive        = NewError(KindConflict, "game is not active")
	ErrGameSessionNotFound = NewError(KindNotFound, "game session not found")
)
