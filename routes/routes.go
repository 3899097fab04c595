package routes

import (
	"time"

	"visitguard/config"
	"visitguard/controllers"
	"visitguard/middleware"
	"visitguard/services"
	"visitguard/utils"
	"visitguard/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Authenticated clients send frequent location pings; the budget is per user.
const apiRequestsPerMinute = 600

// Dependencies are the long-lived components built in main.
type Dependencies struct {
	Config          *config.Config
	TrackingService *services.TrackingService
	Redis           *redis.Client
	Hub             *websocket.Hub
	HealthChecks    map[string]controllers.HealthCheck
}

// Controllers initialization
type Controllers struct {
	Tracking   *controllers.TrackingController
	Monitoring *controllers.MonitoringController
	Public     *controllers.PublicController
	WebSocket  *controllers.WebSocketController
	Health     *controllers.HealthController
}

// SetupRoutes initializes all application routes
func SetupRoutes(deps Dependencies) *gin.Engine {
	router := gin.New()

	authMiddleware := middleware.NewAuthMiddleware(utils.NewJWTService(deps.Config.JWTSecret))
	controllers := initializeControllers(deps, authMiddleware)

	setupGlobalMiddleware(router, deps.Config)

	router.GET("/health", controllers.Health.HealthCheck)

	setupPublicRoutes(router, controllers, deps)
	setupAuthenticatedRoutes(router, controllers, authMiddleware, deps.Redis)
	SetupWebSocketRoutes(router, controllers.WebSocket, authMiddleware)

	return router
}

func initializeControllers(deps Dependencies, authMiddleware *middleware.AuthMiddleware) *Controllers {
	validationService := utils.NewValidationService()

	return &Controllers{
		Tracking:   controllers.NewTrackingController(deps.TrackingService, validationService),
		Monitoring: controllers.NewMonitoringController(deps.TrackingService, validationService),
		Public:     controllers.NewPublicController(deps.TrackingService),
		WebSocket:  controllers.NewWebSocketController(deps.Hub, deps.TrackingService, authMiddleware, deps.Config.AllowedOrigins),
		Health:     controllers.NewHealthController(deps.HealthChecks),
	}
}

func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger()).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
}

// Public routes (no authentication, throttled per IP)
func setupPublicRoutes(router *gin.Engine, controllers *Controllers, deps Dependencies) {
	public := router.Group("/public")
	public.Use(middleware.PublicRateLimit(deps.Redis, deps.Config.RateLimitRequest, deps.Config.RateLimitPeriod()))

	SetupPublicRoutes(public, controllers.Public, controllers.WebSocket)
}

// Authenticated routes (requires valid JWT token)
func setupAuthenticatedRoutes(router *gin.Engine, controllers *Controllers, authMiddleware *middleware.AuthMiddleware, redis *redis.Client) {
	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	api.Use(middleware.APIRateLimit(redis, apiRequestsPerMinute, time.Minute))

	SetupTrackingRoutes(api, controllers.Tracking, authMiddleware)
	SetupMonitoringRoutes(api, controllers.Monitoring, authMiddleware)
}
