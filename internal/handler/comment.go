package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// List handles GET /posts/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cursor, limit, ok := page(w, r, 0)
	if !ok {
		return
	}

	comments, err := h.commentService.List(r.Context(), postID, cursor, limit)
	if err != nil {
		httputil.WriteServiceError(w, r, "ListComments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comments)
}

// Create handles POST /posts/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.CreateCommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateComment", err)
		return
	}

	comment, err := h.commentService.Create(r.Context(), postID, userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateComment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /comments/{id} (comment owner or admin).
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), commentID, actor); err != nil {
		httputil.WriteServiceError(w, r, "DeleteComment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted"})
}
