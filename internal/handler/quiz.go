package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

type QuizHandler struct {
	quizService *service.QuizService
}

func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListPublic handles GET /quizzes without answer keys.
func (h *QuizHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizService.ListPublic(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, "ListQuizzes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quizzes)
}

// GetPublic handles GET /quizzes/{id}
func (h *QuizHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quiz, err := h.quizService.GetPublic(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetQuiz", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quiz)
}

// SubmitAttempt handles POST /quizzes/{id}/attempts
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.SubmitAttemptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "SubmitAttempt", err)
		return
	}

	attempt, err := h.quizService.SubmitAttempt(r.Context(), id, userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "SubmitAttempt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, attempt)
}

// List handles GET /admin/quizzes with answer keys.
func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizService.List(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, "AdminListQuizzes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quizzes)
}

func (h *QuizHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quiz, err := h.quizService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "AdminGetQuiz", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.QuizRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateQuiz", err)
		return
	}
	quiz, err := h.quizService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateQuiz", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, quiz)
}

func (h *QuizHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.QuizRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateQuiz", err)
		return
	}
	quiz, err := h.quizService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateQuiz", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.quizService.Delete(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteQuiz", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Quiz deleted"})
}

// DeleteAttempt handles DELETE /admin/quiz-attempts/{id}
func (h *QuizHandler) DeleteAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.quizService.DeleteAttempt(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteAttempt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Attempt deleted"})
}
