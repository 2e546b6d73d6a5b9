package router

import (
	"log/slog"
	"slices"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/bootstrap"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/handlers"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/middleware"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, rt *bootstrap.Runtime, cfg *config.Config, logger *slog.Logger) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	if cfg.MetricsEnabled {
		e.Use(middleware.Metrics())
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
		logger.Info("Metrics endpoint configured.")
	}

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(rt.Identity, logger)
	authHandler.RegisterAuthRoutes(authGroup)
	logger.Info("Auth routes configured.")

	// --- Feed works signed out and returns an empty feed ---
	public := e.Group("/api/v1")
	public.Use(middleware.OptionalAuth(rt.Identity))
	feedHandler := handlers.NewFeedHandler(rt.Composer, logger)
	feedHandler.RegisterFeedRoutes(public)
	logger.Info("Feed routes configured.")

	// --- Protected routes (require a session) ---
	api := e.Group("/api/v1")
	api.Use(middleware.SessionAuth(rt.Identity))
	logger.Info("Session middleware applied to /api/v1 group.")

	authHandler.RegisterSessionRoutes(api)

	// User profile routes
	userHandler := handlers.NewUserHandler(rt.Profiles, cfg.MaxUploadMB, logger)
	userHandler.RegisterProfileRoutes(api)
	logger.Info("User profile routes configured.")

	// Post routes
	postHandler := handlers.NewPostHandler(rt.Editor, cfg.MaxUploadMB, logger)
	postHandler.RegisterPostRoutes(api)
	logger.Info("Post routes configured.")

	// Follow routes
	followHandler := handlers.NewFollowHandler(rt.Follows, logger)
	followHandler.RegisterFollowRoutes(api)
	logger.Info("Follow routes configured.")

	// Comment routes
	commentHandler := handlers.NewCommentHandler(rt.Tracker, logger)
	commentHandler.RegisterCommentRoutes(api)
	logger.Info("Comment routes configured.")

	// Like routes
	likeHandler := handlers.NewLikeHandler(rt.Tracker, logger)
	likeHandler.RegisterLikeRoutes(api)
	logger.Info("Like routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(rt.Notifications, logger)
	notificationHandler.RegisterNotificationRoutes(api)
	logger.Info("Notification routes configured.")

	// Message routes
	messageHandler := handlers.NewMessageHandler(rt.Messages, logger)
	messageHandler.RegisterMessageRoutes(api)
	logger.Info("Message routes configured.")

	// Live streams
	liveHandler := handlers.NewLiveHandler(rt.Tracker, rt.Notifications, rt.Identity.Events(),
		originAllowed(cfg.AllowedOrigins), logger)
	liveHandler.RegisterLiveRoutes(api)
	logger.Info("Live stream routes configured.")

	logger.Info("All routes configured.")
}

func originAllowed(allowed []string) func(string) bool {
	return func(origin string) bool {
		return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
