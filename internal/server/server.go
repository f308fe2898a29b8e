// Package server wires the TRAZIO web client: the Fiber app serving guarded
// pages and actions on top of per-browser sessions.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trazio/internal/cache"
	"trazio/internal/config"
	"trazio/internal/database"
	"trazio/internal/featureflags"
	"trazio/internal/middleware"
	"trazio/internal/notifications"
	"trazio/internal/observability"
	"trazio/internal/onboarding"
	"trazio/internal/querycache"
	"trazio/internal/session"
	"trazio/internal/storage"
	"trazio/internal/upload"
	"trazio/internal/view"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// sweepInterval is how often idle sessions are looked for.
const sweepInterval = time.Minute

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	registry       *session.Registry
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager
	view           *view.View
	sessionConfig  middleware.SessionConfig
}

// NewServer connects the session store and Redis, then builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg, &storage.Entry{})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; sessions are then neither persisted nor shared
// between instances.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	catalog, err := onboarding.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load onboarding catalog: %w", err)
	}

	var store querycache.Store = querycache.MemoryStore{}
	if redisClient != nil {
		store = querycache.NewRedisStore(redisClient, cfg.QueryPersistTTL())
	}

	deps := session.Deps{
		Storage:    storage.NewLocalStorage(db),
		APIBaseURL: cfg.APIBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout()},
		StaleTime:  cfg.QueryStaleTime(),
		Store:      store,
		Uploads:    upload.NewValidator(upload.LimitsFromConfig(cfg)),
		Catalog:    catalog,
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("trazio-web"),
		notifier:       notifications.NewNotifier(redisClient, uuid.NewString()),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		sessionConfig: middleware.SessionConfig{
			CookieName: cfg.SessionCookieName,
			Secure:     cfg.IsProduction(),
		},
	}
	server.registry = session.NewRegistry(deps, cfg.SessionIdle(), server.notifier)
	server.view = view.New(server.featureFlags, server.registry)

	return server, nil
}

// NewApp builds the Fiber app with every middleware and route.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "TRAZIO Web",
		BodyLimit:    s.bodyLimit(),
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit admits the largest upload plus room for the multipart envelope.
func (s *Server) bodyLimit() int {
	var largest int64
	for _, n := range upload.LimitsFromConfig(s.config) {
		largest = max(largest, n)
	}
	return int(largest) + 1<<20
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry its headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(view.Outcome{
				Toast: &view.Toast{Kind: "error", Message: "Demasiadas solicitudes, intenta más tarde"},
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "TRAZIO Web Metrics Dashboard",
	}))

	sessions := middleware.Sessions(s.registry, s.sessionConfig)

	// Pages are gated by the router before any query runs.
	pages := app.Group("/pages", sessions, middleware.Guard("/pages"))
	pages.Get("/login", s.StaticPage)
	pages.Get("/register", s.StaticPage)
	pages.Get("/onboarding", s.OnboardingPage)
	pages.Get("/feed", s.FeedPage)
	pages.Get("/posts/:id", s.PostPage)
	pages.Get("/profile", s.ProfilePage)
	pages.Get("/profile/:id", s.ProfilePage)
	pages.Get("/hashtag/:tag", s.HashtagPage)
	mountResourcePages(pages.Group("/exams"), s.view.Exams)
	mountResourcePages(pages.Group("/assignments"), s.view.Assignments)
	mountResourcePages(pages.Group("/projects"), s.view.Projects)

	api := app.Group("/api", sessions)
	api.Get("/features", s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/logout", s.Logout)

	// Everything below acts for the signed-in user.
	actions := api.Group("", requireUser,
		middleware.RateLimit(s.redis, s.config.RateLimitActionsPerM, time.Minute, "actions"))

	posts := actions.Group("/posts")
	posts.Post("/", s.CreatePost)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Post("/:id/highlight", s.ToggleHighlight)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Delete("/:id", s.DeletePost)

	mountResourceActions(actions.Group("/exams"), s.view.Exams)
	mountResourceActions(actions.Group("/assignments"), s.view.Assignments)
	mountResourceActions(actions.Group("/projects"), s.view.Projects)

	actions.Put("/profile", s.UpdateProfile)

	actions.Post("/uploads/:kind", s.Upload)
	actions.Delete("/uploads/:id", s.DeleteUpload)

	onboard := actions.Group("/onboarding")
	onboard.Post("/next", s.OnboardingNext)
	onboard.Post("/back", s.OnboardingBack)
	onboard.Post("/submit", s.OnboardingSubmit)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports the session store and Redis. Redis is optional:
// without it the check reports it as disabled.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overallStatus,
		"sessions": s.registry.Len(),
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the session sweeper and the HTTP server.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if err := s.registry.Run(s.shutdownCtx, sweepInterval); err != nil {
		observability.Logger.Warn("cross-instance invalidation disabled", slog.String("error", err.Error()))
	}

	s.app = s.NewApp()
	observability.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		observability.Logger.Error("error closing session store", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			observability.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	observability.Logger.Info("server shutdown complete")
	return nil
}
