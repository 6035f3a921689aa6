// Package server contains the HTTP and WebSocket handlers for the habersin API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"habersin/internal/admission"
	"habersin/internal/blob"
	"habersin/internal/cache"
	"habersin/internal/config"
	"habersin/internal/contentfilter"
	"habersin/internal/database"
	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/realtime"
	"habersin/internal/repository"
	"habersin/internal/retry"
	"habersin/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Blobs   blob.Store
	Matcher *contentfilter.ProfanityMatcher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	blobs          blob.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	store          repository.DocumentStore
	notifier       *realtime.Notifier

	postService         *service.PostService
	moderationService   *service.ModerationService
	commentService      *service.CommentService
	reportService       *service.ReportService
	notificationService *service.NotificationService
	userService         *service.UserService
}

// NewServer connects the database, Redis and the blob store named by cfg
// and builds a Server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	middleware.InitMiddleware(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	blobs, err := NewBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	matcher, err := NewProfanityMatcher(cfg)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, Deps{
		DB:      db,
		Redis:   cache.GetClient(),
		Blobs:   blobs,
		Matcher: matcher,
	}), nil
}

// NewBlobStore returns the image host when enabled, else a DiskStore under
// BLOB_DIR.
func NewBlobStore(cfg *config.Config) (blob.Store, error) {
	if cfg.UseImageHost {
		return blob.NewImageHost(cfg.ImageHostURL, cfg.ImageHostClientID, nil), nil
	}
	disk, err := blob.NewDiskStore(cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return disk, nil
}

// NewProfanityMatcher merges PROFANITY_TERMS_FILE, when set, into the
// built-in list.
func NewProfanityMatcher(cfg *config.Config) (*contentfilter.ProfanityMatcher, error) {
	if cfg.ProfanityTermsFile == "" {
		return contentfilter.NewDefaultProfanityMatcher(), nil
	}
	extra, err := contentfilter.LoadTermsFile(cfg.ProfanityTermsFile)
	if err != nil {
		return nil, err
	}
	m := contentfilter.NewDefaultProfanityMatcher(extra...)
	middleware.Logger.Info("loaded banned terms", slog.Int("terms", m.Len()))
	return m, nil
}

func imageLimits(cfg *config.Config, maxBytes int64) contentfilter.ImageLimits {
	limits := contentfilter.LimitsWithMaxBytes(maxBytes)
	if cfg.MaxImageDimension > 0 {
		limits.MaxWidth = cfg.MaxImageDimension
		limits.MaxHeight = cfg.MaxImageDimension
	}
	if cfg.SkinRatioThreshold > 0 {
		limits.SkinRatioThreshold = cfg.SkinRatioThreshold
	}
	return limits
}

// NewServerWithDeps wires the services over already opened collaborators.
func NewServerWithDeps(cfg *config.Config, deps Deps) *Server {
	store := repository.NewStore(deps.DB)
	notifier := realtime.NewNotifier(deps.Redis)
	policy := retry.Policy{Attempts: cfg.StoreRetryAttempts, Delay: cfg.StoreRetryDelay}
	uploader := service.NewImageUploader(deps.Blobs)

	matcher := deps.Matcher
	if matcher == nil {
		matcher = contentfilter.NewDefaultProfanityMatcher()
	}

	gate := admission.NewGate(
		matcher,
		contentfilter.NewImageValidator(imageLimits(cfg, cfg.SubmissionMaxImageBytes)),
		models.PostStatus(cfg.DefaultPostStatus),
	)

	return &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		blobs:          deps.Blobs,
		promMiddleware: middleware.InitMetrics("habersin-api"),
		store:          store,
		notifier:       notifier,
		postService: service.NewPostService(
			store, gate, matcher,
			contentfilter.NewImageValidator(imageLimits(cfg, cfg.EditMaxImageBytes)),
			uploader, policy,
		),
		moderationService:   service.NewModerationService(store, notifier, policy),
		commentService:      service.NewCommentService(store, matcher, notifier),
		reportService:       service.NewReportService(store),
		notificationService: service.NewNotificationService(store, notifier),
		userService: service.NewUserService(
			store, matcher,
			contentfilter.NewImageValidator(imageLimits(cfg, cfg.ProfileMaxImageBytes)),
			uploader,
		),
	}
}

// bodyLimit fits a full submission or a profile photo plus form overhead.
func (s *Server) bodyLimit() int {
	limit := int64(admission.MaxImages) * s.config.SubmissionMaxImageBytes
	if s.config.ProfileMaxImageBytes > limit {
		limit = s.config.ProfileMaxImageBytes
	}
	return int(limit + contentfilter.MiB)
}

// App returns the configured fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "habersin API",
		BodyLimit:    s.bodyLimit(),
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// media is embedded by the web client from another origin
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// cors rejects a wildcard combined with credentials
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if disk, ok := s.blobs.(*blob.DiskStore); ok {
		app.Static(blob.MediaPrefix, disk.Root(), fiber.Static{
			MaxAge: int((24 * time.Hour).Seconds()),
		})
	}

	api := app.Group("/api")
	api.Get("/categories", s.GetCategories)

	window := s.config.RateLimitWindow

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/search", s.SearchPosts)
	// specific /:id/:resource routes before generic /:id
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.AuthRequired,
		middleware.RateLimit(s.redis, s.config.RateLimitComments, window, "create_comment"), s.CreateComment)
	posts.Post("/:id/reactions", middleware.AuthRequired, s.ReactToPost)
	posts.Post("/:id/reports", middleware.AuthRequired, s.ReportPost)
	posts.Get("/:id", middleware.OptionalAuth, s.GetPost)
	posts.Post("/", middleware.AuthRequired,
		middleware.RateLimit(s.redis, s.config.RateLimitSubmissions, window, "create_post"), s.CreatePost)
	posts.Put("/:id", middleware.AuthRequired, s.UpdatePost)
	posts.Delete("/:id", middleware.AuthRequired, s.DeletePost)

	moderation := api.Group("/moderation", middleware.AuthRequired)
	moderation.Get("/posts", s.GetPendingPosts)
	moderation.Post("/posts/:id", s.ModeratePost)
	moderation.Get("/reports", s.GetOpenReports)
	moderation.Post("/reports/:id/review", s.ReviewReport)

	notifications := api.Group("/notifications", middleware.AuthRequired)
	notifications.Get("/", s.GetNotifications)
	notifications.Post("/:id/read", s.MarkNotificationRead)

	users := api.Group("/users")
	users.Get("/me", middleware.AuthRequired, s.GetMyProfile)
	users.Put("/me", middleware.AuthRequired, s.UpdateMyProfile)
	users.Post("/me/photo", middleware.AuthRequired, s.UploadProfilePhoto)
	users.Get("/:id/posts", middleware.OptionalAuth, s.GetUserPosts)

	ws := api.Group("/ws", middleware.AuthRequired, s.upgradeRequired)
	ws.Get("/notifications", s.NotificationsSocket())
	ws.Get("/posts/:id/comments", s.CommentsSocket())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: its
// absence degrades realtime updates but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetCategories handles GET /api/categories
func (s *Server) GetCategories(c *fiber.Ctx) error {
	return c.JSON(models.Categories)
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
