package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

// GameSessionService records plays and attributes their scores. The session
// row, the user's score and the catalog statistics change in one
// transaction; the leaderboard follows after commit.
type GameSessionService struct {
	tx          repository.Transactor
	sessionRepo repository.GameSessionRepository
	userRepo    repository.UserRepository
	gameRepo    repository.GameRepository
	leaderboard *LeaderboardService
}

func NewGameSessionService(
	tx repository.Transactor,
	sessionRepo repository.GameSessionRepository,
	userRepo repository.UserRepository,
	gameRepo repository.GameRepository,
	leaderboard *LeaderboardService,
) *GameSessionService {
	return &GameSessionService{
		tx:          tx,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		gameRepo:    gameRepo,
		leaderboard: leaderboard,
	}
}

// Record stores a finished play for playerID and adds its score. A
// PartialSuccess error comes back together with the result when only the
// leaderboard write failed.
func (s *GameSessionService) Record(ctx context.Context, playerID int64, req model.RecordSessionRequest) (*model.SessionResult, error) {
	if playerID <= 0 {
		return nil, model.ErrIdentityRequired
	}
	if req.Score < 0 || req.Duration < 0 {
		return nil, model.Validationf("score and duration must be non-negative")
	}

	if req.GameID != nil {
		game, err := s.gameRepo.GetByID(ctx, *req.GameID)
		if err != nil {
			return nil, err
		}
		if !game.IsActive {
			return nil, model.ErrGameInactive
		}
	}

	session := &model.GameSession{
		PlayerID:   playerID,
		GameID:     req.GameID,
		GameType:   req.GameType,
		GameName:   strings.TrimSpace(req.GameName),
		Score:      req.Score,
		Duration:   req.Duration,
		Difficulty: req.Difficulty,
		Country:    req.Country,
	}

	var change *model.ScoreChange
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		player, err := s.userRepo.GetForUpdate(ctx, tx, playerID)
		if err != nil {
			return err
		}
		session.PlayerUsername = player.Username

		if err := s.sessionRepo.Create(ctx, tx, session); err != nil {
			return err
		}
		change, err = s.userRepo.ApplyScore(ctx, tx, playerID, session.Score, 1)
		if err != nil {
			return err
		}
		if session.GameID != nil {
			return s.gameRepo.RecordPlay(ctx, tx, *session.GameID, session.Score)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"session_id": session.ID,
		"user_id":    playerID,
		"score":      session.Score,
		"total":      change.After,
	}).Info("[GameSessionService] Session recorded")

	result := &model.SessionResult{Session: session, UserScore: change.After, UserLevel: change.Level}
	if err := s.leaderboard.Record(ctx, playerID); err != nil {
		return result, err
	}
	return result, nil
}

// Delete removes a session and reverses its score. When the player is gone
// there is nothing to reverse and the skip is only logged. games_played and
// catalog statistics count plays, so they are left as they are.
func (s *GameSessionService) Delete(ctx context.Context, sessionID int64) (*model.SessionResult, error) {
	var (
		session *model.GameSession
		change  *model.ScoreChange
	)
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		deleted, err := s.sessionRepo.Delete(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		session = deleted

		change, err = s.userRepo.ApplyScore(ctx, tx, deleted.PlayerID, -deleted.Score, 0)
		if errors.Is(err, model.ErrUserNotFound) {
			log.WithFields(log.Fields{"session_id": sessionID, "user_id": deleted.PlayerID}).
				Info("[GameSessionService] Player no longer exists; score reversal skipped")
			change = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &model.SessionResult{Session: session}
	if change == nil {
		return result, nil
	}
	result.UserScore = change.After
	result.UserLevel = change.Level

	log.WithFields(log.Fields{"session_id": sessionID, "user_id": session.PlayerID, "reversed": session.Score}).
		Info("[GameSessionService] Session deleted")

	if err := s.leaderboard.Record(ctx, session.PlayerID); err != nil {
		return result, err
	}
	return result, nil
}

func (s *GameSessionService) GetByID(ctx context.Context, sessionID int64) (*model.GameSession, error) {
	return s.sessionRepo.GetByID(ctx, sessionID)
}

// List pages through sessions, optionally narrowed to one player, game
// type, difficulty or country.
func (s *GameSessionService) List(ctx context.Context, filter model.SessionFilter) (*model.SessionListResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = model.DefaultSessionPageSize
	}
	if filter.Limit > model.MaxSessionPageSize {
		filter.Limit = model.MaxSessionPageSize
	}
	filter.Country = strings.TrimSpace(filter.Country)
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.PlayerID != nil {
		if _, err := s.userRepo.GetByID(ctx, *filter.PlayerID); err != nil {
			return nil, err
		}
	}

	sessions, next, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.SessionListResponse{Sessions: sessions, NextCursor: next, HasMore: next != nil}, nil
}
