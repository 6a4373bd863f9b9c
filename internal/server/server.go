// Package server contains the HTTP handlers for the pod-sharing API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podshare/internal/cache"
	"podshare/internal/config"
	"podshare/internal/featureflags"
	"podshare/internal/middleware"
	"podshare/internal/models"
	"podshare/internal/notifications"
	"podshare/internal/repository"
	"podshare/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// Deps are the already-initialized dependencies a Server is built from.
type Deps struct {
	Store repository.Store
	// Redis may be nil; cache, rate limits and token revocation are then off.
	Redis  *redis.Client
	Events notifications.Publisher
	// Ping checks the database for readiness. Nil means there is no database.
	Ping func(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          repository.Store
	redis          *redis.Client
	ping           func(ctx context.Context) error
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Auth
	rateLimiter    *middleware.RateLimiter
	featureFlags   *featureflags.Flags
	podService     *service.PodService
	lifecycle      *service.LifecycleService
	roster         *service.RosterService
	userService    *service.UserService
}

// NewServer creates a Server using already-initialized dependencies.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server requires a store")
	}

	podCache := cache.New(deps.Redis)
	flags := featureflags.Parse(cfg.FeatureFlags)

	s := &Server{
		config:         cfg,
		store:          deps.Store,
		redis:          deps.Redis,
		ping:           deps.Ping,
		promMiddleware: middleware.InitMetrics("podshare-api"),
		auth:           middleware.NewAuth(cfg.JWTSecret, deps.Redis),
		rateLimiter:    middleware.NewRateLimiter(deps.Redis, cfg.RateLimitEnabled()),
		featureFlags:   flags,
	}
	s.podService = service.NewPodService(deps.Store, podCache, flags, cfg.PodCacheTTL)
	s.lifecycle = service.NewLifecycleService(deps.Store, deps.Events, podCache)
	s.roster = service.NewRosterService(deps.Store, deps.Events, podCache)
	s.userService = service.NewUserService(deps.Store.Users(), 0)

	return s, nil
}

// App builds the fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "PodShare API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler answers errors that escaped a handler. Fiber errors keep
// their status; anything else is an internal error.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
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
	app.Use(middleware.TracingMiddleware())

	// after requestid and tracing so both ids reach the user context
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	if s.config.RateLimitEnabled() {
		app.Use(limiter.New(limiter.Config{
			Max:        100,
			Expiration: 1 * time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", s.rateLimiter.Limit("signup", 3, 10*time.Minute, middleware.FailOpen), s.Signup)
	auth.Post("/login", s.rateLimiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/logout", s.auth.Required(), s.Logout)

	// Public pod browsing. /slug/:slug is registered before /:id.
	publicPods := api.Group("/pods")
	publicPods.Get("/", s.ListPods)
	publicPods.Get("/slug/:slug", s.GetPodBySlug)
	publicPods.Get("/:id/roster", s.GetRoster)
	publicPods.Get("/:id", s.GetPod)

	protected := api.Group("", s.auth.Required())

	pods := protected.Group("/pods")
	pods.Post("/", s.CreatePod)
	pods.Post("/:id/join-requests",
		s.rateLimiter.Limit("join_request", 10, 10*time.Minute, middleware.FailOpen), s.SubmitJoinRequest)
	pods.Get("/:id/join-requests", s.GetPodJoinRequests)
	pods.Delete("/:id/members/:userId", s.RemoveMember)
	pods.Post("/:id/leave", s.LeavePod)
	pods.Put("/:id", s.UpdatePod)
	pods.Delete("/:id", s.DeletePod)

	joinRequests := protected.Group("/join-requests")
	joinRequests.Get("/me", s.GetMyJoinRequests)
	joinRequests.Get("/leader", s.GetLeaderJoinRequests)
	joinRequests.Post("/:id/accept", s.AcceptJoinRequest)
	joinRequests.Post("/:id/reject", s.RejectJoinRequest)

	dashboard := protected.Group("/dashboard")
	dashboard.Get("/leader", s.GetLeaderDashboard)
	dashboard.Get("/member", s.GetMemberDashboard)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// its absence is reported but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.ping == nil {
		dbStatus = "memory"
	} else if err := s.ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	if err := app.Listen(":" + s.config.Port); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}
