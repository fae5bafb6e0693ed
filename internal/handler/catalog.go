package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

// CatalogHandler serves badges and achievements.
type CatalogHandler struct {
	badgeService       *service.BadgeService
	achievementService *service.AchievementService
}

func NewCatalogHandler(badgeService *service.BadgeService, achievementService *service.AchievementService) *CatalogHandler {
	return &CatalogHandler{
		badgeService:       badgeService,
		achievementService: achievementService,
	}
}

// catalogFilter reads ?level. Public callers only see active entries.
func catalogFilter(r *http.Request) model.CatalogFilter {
	return model.CatalogFilter{
		Level:      r.URL.Query().Get("level"),
		ActiveOnly: !isAdmin(r),
	}
}

// holderIDs reads the {id} and {userID} parameters of the holder routes.
func holderIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return 0, 0, false
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return 0, 0, false
	}
	return id, userID, true
}

// =============================================================================
// Badges
// =============================================================================

func (h *CatalogHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.badgeService.List(r.Context(), catalogFilter(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "ListBadges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, badges)
}

func (h *CatalogHandler) GetBadge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badge, err := h.badgeService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, badge)
}

// UserBadges handles GET /badges/user/{userID}
func (h *CatalogHandler) UserBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	badges, err := h.badgeService.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, "UserBadges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, badges)
}

func (h *CatalogHandler) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req model.BadgeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateBadge", err)
		return
	}
	badge, err := h.badgeService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, badge)
}

func (h *CatalogHandler) UpdateBadge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.BadgeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateBadge", err)
		return
	}
	badge, err := h.badgeService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, badge)
}

// DeleteBadge answers 500 with Retry-After when holder cleanup is left to
// the worker.
func (h *CatalogHandler) DeleteBadge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.badgeService.Delete(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Badge deleted"})
}

func (h *CatalogHandler) AwardBadge(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := holderIDs(w, r)
	if !ok {
		return
	}
	if err := h.badgeService.Award(r.Context(), id, userID); err != nil {
		httputil.WriteServiceError(w, r, "AwardBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, messageResponse{Message: "Badge awarded"})
}

func (h *CatalogHandler) RevokeBadge(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := holderIDs(w, r)
	if !ok {
		return
	}
	if err := h.badgeService.Revoke(r.Context(), id, userID); err != nil {
		httputil.WriteServiceError(w, r, "RevokeBadge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Badge revoked"})
}

// =============================================================================
// Achievements
// =============================================================================

func (h *CatalogHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.achievementService.List(r.Context(), catalogFilter(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "ListAchievements", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, achievements)
}

func (h *CatalogHandler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	achievement, err := h.achievementService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, achievement)
}

func (h *CatalogHandler) UserAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	achievements, err := h.achievementService.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, "UserAchievements", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, achievements)
}

func (h *CatalogHandler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req model.AchievementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateAchievement", err)
		return
	}
	achievement, err := h.achievementService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, achievement)
}

func (h *CatalogHandler) UpdateAchievement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.AchievementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateAchievement", err)
		return
	}
	achievement, err := h.achievementService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, achievement)
}

func (h *CatalogHandler) DeleteAchievement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.achievementService.Delete(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Achievement deleted"})
}

func (h *CatalogHandler) AwardAchievement(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := holderIDs(w, r)
	if !ok {
		return
	}
	if err := h.achievementService.Award(r.Context(), id, userID); err != nil {
		httputil.WriteServiceError(w, r, "AwardAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, messageResponse{Message: "Achievement awarded"})
}

func (h *CatalogHandler) RevokeAchievement(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := holderIDs(w, r)
	if !ok {
		return
	}
	if err := h.achievementService.Revoke(r.Context(), id, userID); err != nil {
		httputil.WriteServiceError(w, r, "RevokeAchievement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Achievement revoked"})
}
