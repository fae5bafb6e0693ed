package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/cache"
	"geojungle/internal/config"
	"geojungle/internal/database"
	"geojungle/internal/handler"
	"geojungle/internal/jobs"
	"geojungle/internal/queue"
	"geojungle/internal/redis"
	"geojungle/internal/repository"
	"geojungle/internal/service"
	"geojungle/internal/storage"
	transport "geojungle/internal/transport/http"
	"geojungle/internal/worker"
)

// streamMaxLen caps the ledger stream; older acknowledged entries are trimmed.
const streamMaxLen = 100000

// App owns every long-lived dependency of a process. New builds them in
// order and Close releases them in reverse.
type App struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client
	Store storage.AssetStore

	Services Services
	Handlers transport.Handlers

	Worker    *worker.Manager
	Scheduler *jobs.Scheduler

	uploadDir string
}

type Services struct {
	Auth        *service.AuthService
	User        *service.UserService
	Media       *service.MediaService
	Post        *service.PostService
	Engagement  *service.EngagementService
	Comment     *service.CommentService
	Community   *service.CommunityService
	MiniAdmin   *service.MiniAdminService
	Cascade     *service.CatalogCascade
	Badge       *service.BadgeService
	Achievement *service.AchievementService
	Leaderboard *service.LeaderboardService
	Game        *service.GameService
	Session     *service.GameSessionService
	Quiz        *service.QuizService
	Analytics   *service.AnalyticsService
}

// New connects to Postgres and Redis, applies the schema and wires the
// repositories, services and handlers. Background components are built but
// not started; see StartBackground.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if err := database.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	rc, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rc
	if err := rc.Ping(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.wire()
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.StorageDriver {
	case config.StorageR2:
		store, err := storage.NewR2Store(ctx, a.Config)
		if err != nil {
			return fmt.Errorf("init r2 store: %w", err)
		}
		a.Store = store
	default:
		store, err := storage.NewLocalStore(a.Config.UploadDir, a.Config.PublicBaseURL)
		if err != nil {
			return err
		}
		a.Store = store
		a.uploadDir = store.Root()
	}
	return nil
}

func (a *App) wire() {
	cfg := a.Config
	tx := database.NewTxRunner(a.DB)

	// Repositories
	userRepo := repository.NewUserRepository(a.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(a.DB)
	postRepo := repository.NewPostRepository(a.DB)
	commentRepo := repository.NewCommentRepository(a.DB)
	communityRepo := repository.NewCommunityRepository(a.DB)
	miniAdminRepo := repository.NewMiniAdminRepository(a.DB)
	badgeRepo := repository.NewBadgeRepository(a.DB)
	achievementRepo := repository.NewAchievementRepository(a.DB)
	gameRepo := repository.NewGameRepository(a.DB)
	sessionRepo := repository.NewGameSessionRepository(a.DB)
	quizRepo := repository.NewQuizRepository(a.DB)
	maintenanceRepo := repository.NewMaintenanceRepository(a.DB)

	// Redis-backed infrastructure
	publisher := queue.NewPublisher(a.Redis.Client, streamMaxLen)
	board := cache.NewLeaderboard(a.Redis.Client)

	// Services
	s := Services{}
	s.Auth = service.NewAuthService(refreshTokenRepo, userRepo, cfg)
	s.Media = service.NewMediaService(a.Store, cfg.MaxImageSizeBytes)
	s.Leaderboard = service.NewLeaderboardService(userRepo, board, publisher)
	s.User = service.NewUserService(tx, service.UserRepos{
		Users:        userRepo,
		Posts:        postRepo,
		Comments:     commentRepo,
		Communities:  communityRepo,
		MiniAdmins:   miniAdminRepo,
		Sessions:     sessionRepo,
		Quizzes:      quizRepo,
		Badges:       badgeRepo,
		Achievements: achievementRepo,
	}, s.Leaderboard, s.Media)
	s.Post = service.NewPostService(tx, postRepo, userRepo, miniAdminRepo, s.Media)
	s.Engagement = service.NewEngagementService(tx, postRepo)
	s.Comment = service.NewCommentService(tx, commentRepo, postRepo, userRepo)
	s.Community = service.NewCommunityService(tx, communityRepo, userRepo, miniAdminRepo)
	s.MiniAdmin = service.NewMiniAdminService(tx, miniAdminRepo, userRepo, communityRepo)
	s.Cascade = service.NewCatalogCascade(badgeRepo, achievementRepo, publisher, cfg.CascadeBatchSize, cfg.CascadeMaxAttempts)
	s.Badge = service.NewBadgeService(tx, badgeRepo, s.Cascade)
	s.Achievement = service.NewAchievementService(tx, achievementRepo, s.Cascade)
	s.Game = service.NewGameService(gameRepo)
	s.Session = service.NewGameSessionService(tx, sessionRepo, userRepo, gameRepo, s.Leaderboard)
	s.Quiz = service.NewQuizService(tx, quizRepo, userRepo)
	s.Analytics = service.NewAnalyticsService(tx, maintenanceRepo, s.Leaderboard)
	a.Services = s

	// Handlers
	a.Handlers = transport.Handlers{
		Auth:       handler.NewAuthHandler(s.User, s.Auth),
		User:       handler.NewUserHandler(s.User, s.Post, s.Session),
		Post:       handler.NewPostHandler(s.Post, s.Media, cfg.MaxImageSizeBytes),
		Engagement: handler.NewEngagementHandler(s.Engagement),
		Comment:    handler.NewCommentHandler(s.Comment),
		Community:  handler.NewCommunityHandler(s.Community, s.MiniAdmin),
		Catalog:    handler.NewCatalogHandler(s.Badge, s.Achievement),
		Game:       handler.NewGameHandler(s.Game, s.Session),
		Quiz:       handler.NewQuizHandler(s.Quiz),
		Analytics:  handler.NewAnalyticsHandler(s.Analytics, s.Leaderboard),
	}

	// Background components
	if cfg.WorkerEnabled {
		a.Worker = worker.NewManager(
			queue.NewConsumer(a.Redis.Client),
			worker.NewHandler(s.Leaderboard, s.Cascade),
			worker.ManagerConfig{
				WorkerCount:  cfg.WorkerCount,
				BatchSize:    cfg.WorkerBatchSize,
				BlockTimeout: cfg.WorkerBlockTimeout,
			},
		)
	}
	if cfg.CronEnabled {
		a.Scheduler = jobs.NewScheduler(s.Analytics, s.Auth, jobs.Schedule{
			Reconcile:    cfg.CronReconcile,
			Leaderboard:  cfg.CronLeaderboard,
			TokenCleanup: cfg.CronTokenCleanup,
		})
	}
}

// RouterConfig returns the shared router configuration.
func (a *App) RouterConfig() transport.RouterConfig {
	return transport.RouterConfig{
		Handlers:    a.Handlers,
		JWTSecret:   a.Config.JWTSecret,
		CORSOrigins: a.Config.CORSOrigins,
		UploadDir:   a.uploadDir,
	}
}

// StartBackground starts the worker manager and the scheduler if enabled.
func (a *App) StartBackground(ctx context.Context) error {
	if a.Worker != nil {
		if err := a.Worker.Start(ctx); err != nil {
			return fmt.Errorf("start worker manager: %w", err)
		}
	} else {
		log.Info("[App] Worker manager disabled")
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		log.Info("[App] Cron scheduler disabled")
	}
	return nil
}

// Close stops background work, then closes Redis and the database.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Worker != nil {
		a.Worker.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("[App] Failed to close Redis")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.WithError(err).Warn("[App] Failed to close database")
		}
	}
}

// SetupLogging configures the logrus text formatter and level.
func SetupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("[App] Unknown LOG_LEVEL, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
