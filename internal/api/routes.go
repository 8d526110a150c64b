package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dgirardi/thawcast-go/internal/api/handlers"
	"github.com/dgirardi/thawcast-go/internal/database"
	"github.com/dgirardi/thawcast-go/internal/middleware"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Handlers bundles the route dependencies.
type Handlers struct {
	Forecast *handlers.ForecastHandler
	Schedule *handlers.ScheduleHandler
	User     *handlers.UserHandler
	Auth     *middleware.AuthMiddleware
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, h Handlers) {
	router.Use(otelgin.Middleware("thawcast"))

	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// User management
		users := v1.Group("/users")
		{
			users.POST("/register", h.User.RegisterUser)
			users.POST("/login", h.User.LoginUser)
			users.GET("/profile", h.Auth.RequireAuth(), h.User.GetProfile)
		}

		// Forecasting pipeline
		forecast := v1.Group("/forecast", h.Auth.RequireAuth())
		{
			forecast.POST("", h.Forecast.BatchForecast)
			forecast.POST("/single", h.Forecast.ForecastOne)
			forecast.POST("/report", h.Forecast.Report)
			forecast.GET("/:sku/history", h.Forecast.History)
			forecast.GET("/:sku/latest", h.Forecast.Latest)
		}

		// Thaw-cycle arithmetic, public calculators
		schedule := v1.Group("/schedule")
		{
			schedule.POST("/compensation", h.Schedule.Compensation)
			schedule.POST("/lot-age", h.Schedule.LotAge)
			schedule.POST("/lot-stage", h.Schedule.LotStage)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
