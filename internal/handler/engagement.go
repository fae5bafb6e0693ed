package handler

import (
	"context"
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

// EngagementHandler serves the like/dislike toggles. The reacting user is
// always the authenticated caller.
type EngagementHandler struct {
	engagementService *service.EngagementService
}

func NewEngagementHandler(engagementService *service.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagementService: engagementService}
}

type reactionFunc func(ctx context.Context, postID, userID int64) (*model.EngagementResult, error)

func (h *EngagementHandler) serve(op string, fn reactionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		result, err := fn(r.Context(), postID, userID)
		if err != nil {
			httputil.WriteServiceError(w, r, op, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

// Like handles POST /posts/{id}/like
func (h *EngagementHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.serve("Like", h.engagementService.Like)(w, r)
}

// Dislike handles POST /posts/{id}/dislike
func (h *EngagementHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.serve("Dislike", h.engagementService.Dislike)(w, r)
}

// Unlike handles DELETE /posts/{id}/like
func (h *EngagementHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.serve("Unlike", h.engagementService.Unlike)(w, r)
}

// Undislike handles DELETE /posts/{id}/dislike
func (h *EngagementHandler) Undislike(w http.ResponseWriter, r *http.Request) {
	h.serve("Undislike", h.engagementService.Undislike)(w, r)
}
