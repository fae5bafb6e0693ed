package handler

import (
	"net/http"

	"geojungle/internal/httputil"
	"geojungle/internal/service"
)

type AnalyticsHandler struct {
	analyticsService   *service.AnalyticsService
	leaderboardService *service.LeaderboardService
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService, leaderboardService *service.LeaderboardService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService:   analyticsService,
		leaderboardService: leaderboardService,
	}
}

// Leaderboard handles GET /leaderboard?limit
func (h *AnalyticsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteServiceError(w, r, "Leaderboard", err)
		return
	}
	entries, err := h.leaderboardService.Top(r.Context(), limit)
	if err != nil {
		httputil.WriteServiceError(w, r, "Leaderboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// Overview handles GET /admin/analytics/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analyticsService.Overview(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, "Overview", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

// Reconcile handles POST /admin/maintenance/reconcile
func (h *AnalyticsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyticsService.Reconcile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, "Reconcile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// RebuildLeaderboard handles POST /admin/maintenance/leaderboard
func (h *AnalyticsHandler) RebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := h.analyticsService.RebuildLeaderboard(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, "RebuildLeaderboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"users": n})
}
