package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/bootstrap"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/router"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	observability.SetLogger(logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "feed-api",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect backends and build services
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, cfg, logger)

	// Setup routes and dependencies
	router.SetupRoutes(e, rt, cfg, logger)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr(), "env", cfg.Env,
			"docstore", cfg.DocstoreBackend, "objectstore", cfg.ObjectstoreBackend)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := rt.Close(); err != nil {
		logger.Error("closing backends", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
}
