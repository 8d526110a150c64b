package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dgirardi/thawcast-go/internal/api"
	"github.com/dgirardi/thawcast-go/internal/api/handlers"
	"github.com/dgirardi/thawcast-go/internal/cache"
	"github.com/dgirardi/thawcast-go/internal/config"
	"github.com/dgirardi/thawcast-go/internal/database"
	"github.com/dgirardi/thawcast-go/internal/forecast"
	"github.com/dgirardi/thawcast-go/internal/ingest"
	"github.com/dgirardi/thawcast-go/internal/logging"
	"github.com/dgirardi/thawcast-go/internal/middleware"
	"github.com/dgirardi/thawcast-go/internal/pipeline"
	"github.com/dgirardi/thawcast-go/internal/schedule"
	"github.com/dgirardi/thawcast-go/internal/services"
	"github.com/dgirardi/thawcast-go/internal/telemetry"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
)

func main() {
	// Load .env if present; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	if err := telemetry.Init(cfg.Environment == "development"); err != nil {
		logger.WithError(err).Warn("Telemetry initialization failed, continuing without tracing")
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	strategy, err := forecast.NewStrategy(cfg.Forecast.Strategy, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid forecast strategy")
	}

	scheduler, err := schedule.NewScheduler(cfg.Retrieval.LossFraction, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid retrieval configuration")
	}

	orchestrator := pipeline.NewOrchestrator(
		timeseries.NewSeriesPreparer(cfg.Forecast.MinHistoryPoints, logger),
		strategy,
		scheduler,
		timeseries.DefaultHolidayCalendar(cfg.Forecast.HolidayEffectWindowDays),
		logger,
	)

	forecastCache := cache.NewForecastCache(redis, cfg.Forecast.CacheTTLDuration(), logger)
	repo := database.NewForecastRepository(db.Pool, logger)

	forecastService := services.NewForecastService(
		orchestrator,
		ingest.NewLoader(logger),
		forecastCache,
		repo,
		cfg.Forecast,
		strategy.Name(),
		logger,
	)

	jwtExpiry, err := time.ParseDuration(cfg.Security.JWTExpiry)
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}
	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, db, redis, api.Handlers{
		Forecast: handlers.NewForecastHandler(forecastService, services.NewResourceMonitor(logger), logger),
		Schedule: handlers.NewScheduleHandler(scheduler, logger),
		User:     handlers.NewUserHandler(db.Pool, auth, cfg.Security.BcryptCost, jwtExpiry, logger),
		Auth:     auth,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
