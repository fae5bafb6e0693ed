package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

type GameHandler struct {
	gameService    *service.GameService
	sessionService *service.GameSessionService
}

func NewGameHandler(gameService *service.GameService, sessionService *service.GameSessionService) *GameHandler {
	return &GameHandler{
		gameService:    gameService,
		sessionService: sessionService,
	}
}

// ListGames handles GET /games (active only) and GET /admin/games.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameService.List(r.Context(), !isAdmin(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "ListGames", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, games)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	game, err := h.gameService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetGame", err)
		return
	}
	if !game.IsActive && !isAdmin(r) {
		httputil.WriteServiceError(w, r, "GetGame", model.ErrGameNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, game)
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req model.GameRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateGame", err)
		return
	}
	game, err := h.gameService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateGame", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, game)
}

func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.GameRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateGame", err)
		return
	}
	game, err := h.gameService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateGame", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, game)
}

func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.gameService.Delete(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteGame", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Game deleted"})
}

// =============================================================================
// Sessions
// =============================================================================

// RecordSession handles POST /sessions. The player is the caller; any
// playerId in the body is ignored.
func (h *GameHandler) RecordSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req model.RecordSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "RecordSession", err)
		return
	}

	result, err := h.sessionService.Record(r.Context(), userID, req)
	httputil.WriteResult(w, r, "RecordSession", http.StatusCreated, result, err)
}

// AdminRecordSession handles POST /admin/sessions for any player.
func (h *GameHandler) AdminRecordSession(w http.ResponseWriter, r *http.Request) {
	var req model.RecordSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "AdminRecordSession", err)
		return
	}
	if req.PlayerID <= 0 {
		httputil.WriteServiceError(w, r, "AdminRecordSession", model.Validationf("playerId is required"))
		return
	}

	result, err := h.sessionService.Record(r.Context(), req.PlayerID, req)
	httputil.WriteResult(w, r, "AdminRecordSession", http.StatusCreated, result, err)
}

// ListSessions handles GET /sessions and GET /admin/sessions with the
// optional player, type, difficulty and country query parameters.
func (h *GameHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	playerID, err := httputil.QueryInt64Ptr(r, "player")
	if err != nil {
		httputil.WriteServiceError(w, r, "ListSessions", err)
		return
	}
	cursor, limit, ok := page(w, r, model.DefaultSessionPageSize)
	if !ok {
		return
	}

	q := r.URL.Query()
	sessions, err := h.sessionService.List(r.Context(), model.SessionFilter{
		PlayerID:   playerID,
		GameType:   q.Get("type"),
		Difficulty: q.Get("difficulty"),
		Country:    q.Get("country"),
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, "ListSessions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

// DeleteSession handles DELETE /admin/sessions/{id}
func (h *GameHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.sessionService.Delete(r.Context(), id)
	httputil.WriteResult(w, r, "DeleteSession", http.StatusOK, result, err)
}
