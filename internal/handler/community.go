package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
	"geojungle/internal/service"
)

type CommunityHandler struct {
	communityService *service.CommunityService
	miniAdminService *service.MiniAdminService
}

func NewCommunityHandler(communityService *service.CommunityService, miniAdminService *service.MiniAdminService) *CommunityHandler {
	return &CommunityHandler{
		communityService: communityService,
		miniAdminService: miniAdminService,
	}
}

// List handles GET /communities (active only) and GET /admin/communities.
func (h *CommunityHandler) List(w http.ResponseWriter, r *http.Request) {
	communities, err := h.communityService.List(r.Context(), !isAdmin(r))
	if err != nil {
		httputil.WriteServiceError(w, r, "ListCommunities", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, communities)
}

func (h *CommunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	community, err := h.communityService.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "GetCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, community)
}

func (h *CommunityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.communityService.Stats(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "CommunityStats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// Members handles GET /communities/{id}/members
func (h *CommunityHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.communityService.Members(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, "CommunityMembers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

// Join handles POST /communities/{id}/join
func (h *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	community, err := h.communityService.Join(r.Context(), id, userID)
	if err != nil {
		httputil.WriteServiceError(w, r, "JoinCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, community)
}

// Leave handles POST /communities/{id}/leave
func (h *CommunityHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.communityService.Leave(r.Context(), id, userID); err != nil {
		httputil.WriteServiceError(w, r, "LeaveCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Left community"})
}

// Create handles POST /admin/communities
func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCommunityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "CreateCommunity", err)
		return
	}
	community, err := h.communityService.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "CreateCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, community)
}

// Update handles PUT /admin/communities/{id}
func (h *CommunityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateCommunityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateCommunity", err)
		return
	}
	community, err := h.communityService.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, community)
}

// Delete handles DELETE /admin/communities/{id}
func (h *CommunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.communityService.Delete(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, "DeleteCommunity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Community deleted"})
}

// =============================================================================
// Mini-admins
// =============================================================================

// ListMiniAdmins handles GET /admin/mini-admins?community
func (h *CommunityHandler) ListMiniAdmins(w http.ResponseWriter, r *http.Request) {
	communityID, err := httputil.QueryInt64Ptr(r, "community")
	if err != nil {
		httputil.WriteServiceError(w, r, "ListMiniAdmins", err)
		return
	}
	admins, err := h.miniAdminService.List(r.Context(), communityID)
	if err != nil {
		httputil.WriteServiceError(w, r, "ListMiniAdmins", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admins)
}

// GrantMiniAdmin handles POST /admin/mini-admins
func (h *CommunityHandler) GrantMiniAdmin(w http.ResponseWriter, r *http.Request) {
	var req model.GrantMiniAdminRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "GrantMiniAdmin", err)
		return
	}
	admin, err := h.miniAdminService.Grant(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, "GrantMiniAdmin", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, admin)
}

// UpdateMiniAdmin handles PUT /admin/mini-admins/{userID}
func (h *CommunityHandler) UpdateMiniAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req model.UpdateMiniAdminRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, "UpdateMiniAdmin", err)
		return
	}
	admin, err := h.miniAdminService.Update(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, "UpdateMiniAdmin", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admin)
}

// RevokeMiniAdmin handles DELETE /admin/mini-admins/{userID}
func (h *CommunityHandler) RevokeMiniAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.miniAdminService.Revoke(r.Context(), userID); err != nil {
		httputil.WriteServiceError(w, r, "RevokeMiniAdmin", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Mini-admin revoked"})
}

// RecordActivity handles POST /admin/mini-admins/{userID}/activity
func (h *CommunityHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.miniAdminService.RecordActivity(r.Context(), userID); err != nil {
		httputil.WriteServiceError(w, r, "RecordActivity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
