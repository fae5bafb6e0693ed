package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"geojungle/internal/handler"
	"geojungle/internal/httputil"
	authmw "geojungle/internal/transport/http/middleware"
)

const requestTimeout = 30 * time.Second

// Handlers groups every HTTP handler shared by the public and admin routers.
type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	Post       *handler.PostHandler
	Engagement *handler.EngagementHandler
	Comment    *handler.CommentHandler
	Community  *handler.CommunityHandler
	Catalog    *handler.CatalogHandler
	Game       *handler.GameHandler
	Quiz       *handler.QuizHandler
	Analytics  *handler.AnalyticsHandler
}

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	Handlers    Handlers
	JWTSecret   string
	CORSOrigins []string

	// UploadDir is served under /uploads when set (local storage driver).
	UploadDir string
}

// baseRouter installs the middleware stack and the health check.
func baseRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Warning", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// NewRouter creates the public API router.
func NewRouter(cfg RouterConfig) chi.Router {
	h := cfg.Handlers
	r := baseRouter(cfg)

	if cfg.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.Handle("/uploads/*", fs)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
	})

	// Public reads. A token is optional and only changes what the viewer sees.
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuthMiddleware(cfg.JWTSecret))

		r.Get("/users/{id}", h.User.GetByID)
		r.Get("/users/{id}/stats", h.User.Stats)
		r.Get("/users/{id}/posts", h.User.Posts)
		r.Get("/users/{id}/sessions", h.User.Sessions)

		r.Get("/posts", h.Post.List)
		r.Get("/posts/{id}", h.Post.GetByID)
		r.Get("/posts/{id}/image", h.Post.Image)
		r.Get("/posts/{id}/reactions", h.Post.Reactions)
		r.Get("/posts/{id}/comments", h.Comment.List)
		r.Get("/countries/{country}/feed", h.Post.CountryFeed)

		r.Get("/communities", h.Community.List)
		r.Get("/communities/{id}", h.Community.GetByID)
		r.Get("/communities/{id}/stats", h.Community.Stats)
		r.Get("/communities/{id}/members", h.Community.Members)

		r.Get("/badges", h.Catalog.ListBadges)
		r.Get("/badges/{id}", h.Catalog.GetBadge)
		r.Get("/badges/user/{userID}", h.Catalog.UserBadges)
		r.Get("/achievements", h.Catalog.ListAchievements)
		r.Get("/achievements/{id}", h.Catalog.GetAchievement)
		r.Get("/achievements/user/{userID}", h.Catalog.UserAchievements)

		r.Get("/sessions", h.Game.ListSessions)

		r.Get("/games", h.Game.ListGames)
		r.Get("/games/{id}", h.Game.GetGame)

		r.Get("/quizzes", h.Quiz.ListPublic)
		r.Get("/quizzes/{id}", h.Quiz.GetPublic)

		r.Get("/leaderboard", h.Analytics.Leaderboard)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", h.Auth.Me)
		r.Post("/auth/logout", h.Auth.Logout)
		r.Post("/auth/logout-all", h.Auth.LogoutAll)

		r.Post("/posts", h.Post.Create)
		r.Patch("/posts/{id}", h.Post.Update)
		r.Delete("/posts/{id}", h.Post.Delete)

		r.Post("/posts/{id}/like", h.Engagement.Like)
		r.Delete("/posts/{id}/like", h.Engagement.Unlike)
		r.Post("/posts/{id}/dislike", h.Engagement.Dislike)
		r.Delete("/posts/{id}/dislike", h.Engagement.Undislike)

		r.Post("/posts/{id}/comments", h.Comment.Create)
		r.Delete("/comments/{id}", h.Comment.Delete)

		r.Post("/communities/{id}/join", h.Community.Join)
		r.Post("/communities/{id}/leave", h.Community.Leave)

		r.Post("/sessions", h.Game.RecordSession)
		r.Post("/quizzes/{id}/attempts", h.Quiz.SubmitAttempt)
	})

	return r
}
