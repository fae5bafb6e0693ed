package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

type UserHandler struct {
	userService    *service.UserService
	postService    *service.PostService
	sessionService *service.GameSessionService
}

func NewUserHandler(userService *service.UserService, postService *service.PostService, sessionService *service.GameSessionService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		postService:    postService,
		sessionService: sessionService,
	}
}

// GetByID handles GET /users/{id} and GET /admin/users/{id}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetUser", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// Stats handles GET /users/{id}/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.userService.Stats(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "UserStats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// Posts handles GET /users/{id}/posts
func (h *UserHandler) Posts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(w, r, model.DefaultPostPageSize)
	if !ok {
		return
	}

	posts, err := h.postService.List(r.Context(), model.PostFilter{AuthorID: id, Cursor: cursor, Limit: limit}, viewerID(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "UserPosts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Sessions handles GET /users/{id}/sessions
func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(w, r, model.DefaultSessionPageSize)
	if !ok {
		return
	}

	sessions, err := h.sessionService.List(r.Context(), model.SessionFilter{PlayerID: &id, Cursor: cursor, Limit: limit})
	if err != nil {
		httputil.WriteServiceError(w, r, "UserSessions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

// List handles GET /admin/users?q
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := page(w, r, 0)
	if !ok {
		return
	}
	users, err := h.userService.List(r.Context(), r.URL.Query().Get("q"), cursor, limit)
	if err != nil {
		httputil.WriteServiceError(w, r, "ListUsers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// Delete handles DELETE /admin/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.userService.Delete(r.Context(), id)
	httputil.WriteResult(w, r, "DeleteUser", http.StatusOK, report, err)
}
