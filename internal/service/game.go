package service

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

// GameService manages the game catalog. Statistics are written only by
// session recording.
type GameService struct {
	gameRepo repository.GameRepository
}

func NewGameService(gameRepo repository.GameRepository) *GameService {
	return &GameService{gameRepo: gameRepo}
}

func (s *GameService) Create(ctx context.Context, req model.GameRequest) (*model.Game, error) {
	game := &model.Game{IsActive: true}
	applyGameRequest(game, req)
	if err := s.gameRepo.Create(ctx, game); err != nil {
		return nil, err
	}
	log.Printf("[GameService] Game %d %q created", game.ID, game.Name)
	return game, nil
}

func applyGameRequest(g *model.Game, req model.GameRequest) {
	g.Name = strings.TrimSpace(req.Name)
	g.Description = strings.TrimSpace(req.Description)
	g.Type = req.Type
	g.Difficulty = req.Difficulty
	g.Settings = req.Settings
	g.Content = req.Content
	if g.Content.Questions == nil {
		g.Content.Questions = []model.GameQuestion{}
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}
}

func (s *GameService) GetByID(ctx context.Context, id int64) (*model.Game, error) {
	return s.gameRepo.GetByID(ctx, id)
}

func (s *GameService) List(ctx context.Context, activeOnly bool) ([]model.Game, error) {
	return s.gameRepo.List(ctx, activeOnly)
}

func (s *GameService) Update(ctx context.Context, id int64, req model.GameRequest) (*model.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyGameRequest(game, req)
	if err := s.gameRepo.Update(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *GameService) Delete(ctx context.Context, id int64) error {
	return s.gameRepo.Delete(ctx, id)
}
