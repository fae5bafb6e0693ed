package http

import (
	"github.com/go-chi/chi/v5"

	"geojungle/internal/model"
	authmw "geojungle/internal/transport/http/middleware"
)

// NewAdminRouter creates the admin API router. Every route lives under
// /admin and needs the admin role, except staff login and post moderation.
func NewAdminRouter(cfg RouterConfig) chi.Router {
	h := cfg.Handlers
	r := baseRouter(cfg)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/login", h.Auth.StaffLogin)
		r.Post("/auth/refresh", h.Auth.StaffRefresh)

		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

			// Mini-admins pass here; the post service checks manage_posts.
			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(model.RoleAdmin, model.RoleMiniAdmin))
				r.Get("/me", h.Auth.Me)
				r.Delete("/posts/{id}", h.Post.Moderate)
			})

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(model.RoleAdmin))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", h.User.List)
					r.Get("/{id}", h.User.GetByID)
					r.Get("/{id}/stats", h.User.Stats)
					r.Delete("/{id}", h.User.Delete)
				})

				r.Get("/posts", h.Post.AdminList)
				r.Post("/posts/{id}/restore", h.Post.Restore)

				r.Route("/badges", func(r chi.Router) {
					r.Get("/", h.Catalog.ListBadges)
					r.Post("/", h.Catalog.CreateBadge)
					r.Get("/{id}", h.Catalog.GetBadge)
					r.Get("/user/{userID}", h.Catalog.UserBadges)
					r.Put("/{id}", h.Catalog.UpdateBadge)
					r.Delete("/{id}", h.Catalog.DeleteBadge)
					r.Post("/{id}/holders/{userID}", h.Catalog.AwardBadge)
					r.Delete("/{id}/holders/{userID}", h.Catalog.RevokeBadge)
				})

				r.Route("/achievements", func(r chi.Router) {
					r.Get("/", h.Catalog.ListAchievements)
					r.Post("/", h.Catalog.CreateAchievement)
					r.Get("/{id}", h.Catalog.GetAchievement)
					r.Get("/user/{userID}", h.Catalog.UserAchievements)
					r.Put("/{id}", h.Catalog.UpdateAchievement)
					r.Delete("/{id}", h.Catalog.DeleteAchievement)
					r.Post("/{id}/holders/{userID}", h.Catalog.AwardAchievement)
					r.Delete("/{id}/holders/{userID}", h.Catalog.RevokeAchievement)
				})

				r.Route("/communities", func(r chi.Router) {
					r.Get("/", h.Community.List)
					r.Post("/", h.Community.Create)
					r.Get("/{id}", h.Community.GetByID)
					r.Put("/{id}", h.Community.Update)
					r.Delete("/{id}", h.Community.Delete)
					r.Get("/{id}/stats", h.Community.Stats)
					r.Get("/{id}/members", h.Community.Members)
				})

				r.Route("/mini-admins", func(r chi.Router) {
					r.Get("/", h.Community.ListMiniAdmins)
					r.Post("/", h.Community.GrantMiniAdmin)
					r.Put("/{userID}", h.Community.UpdateMiniAdmin)
					r.Delete("/{userID}", h.Community.RevokeMiniAdmin)
					r.Post("/{userID}/activity", h.Community.RecordActivity)
				})

				r.Route("/games", func(r chi.Router) {
					r.Get("/", h.Game.ListGames)
					r.Post("/", h.Game.CreateGame)
					r.Get("/{id}", h.Game.GetGame)
					r.Put("/{id}", h.Game.UpdateGame)
					r.Delete("/{id}", h.Game.DeleteGame)
				})

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", h.Game.ListSessions)
					r.Post("/", h.Game.AdminRecordSession)
					r.Delete("/{id}", h.Game.DeleteSession)
				})

				r.Route("/quizzes", func(r chi.Router) {
					r.Get("/", h.Quiz.List)
					r.Post("/", h.Quiz.Create)
					r.Get("/{id}", h.Quiz.GetByID)
					r.Put("/{id}", h.Quiz.Update)
					r.Delete("/{id}", h.Quiz.Delete)
				})
				r.Delete("/quiz-attempts/{id}", h.Quiz.DeleteAttempt)

				r.Get("/analytics/overview", h.Analytics.Overview)
				r.Post("/maintenance/reconcile", h.Analytics.Reconcile)
				r.Post("/maintenance/leaderboard", h.Analytics.RebuildLeaderboard)
			})
		})
	})

	return r
}
