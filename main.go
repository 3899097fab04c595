package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visitguard/config"
	"visitguard/controllers"
	"visitguard/database"
	"visitguard/interfaces"
	"visitguard/repositories"
	"visitguard/routes"
	"visitguard/services"
	"visitguard/websocket"
	"visitguard/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	setupLogger(cfg)

	healthChecks := map[string]controllers.HealthCheck{}

	// Initialize storage
	var store interfaces.SessionStore
	var directory interfaces.Directory
	if cfg.UsesMemoryStore() {
		logrus.Warn("Using in-memory session store, data is lost on restart")
		store = repositories.NewMemoryTrackingRepository()
	} else {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatal("Failed to connect to database: ", err)
		}
		defer database.Disconnect()

		store = repositories.NewTrackingRepository(db)
		directory = repositories.NewDirectoryRepository(db)
		healthChecks["mongodb"] = database.Ping
	}

	// Initialize Redis
	redis := config.InitRedis(cfg)
	defer redis.Close()
	healthChecks["redis"] = func(ctx context.Context) error {
		return redis.Ping(ctx).Err()
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	queue := services.NewRedisNotificationQueue(redis, services.DefaultNotificationQueueKey)

	trackingService := services.NewTrackingService(store, queue, directory, hub, services.TrackingConfig{
		DefaultCheckInIntervalMinutes: cfg.DefaultCheckInInterval,
		ShareLinkTTL:                  cfg.ShareLinkTTL(),
		PublicBaseURL:                 cfg.PublicBaseURL,
		AlertReminderInterval:         cfg.AlertReminderInterval(),
		MonitoringCenter:              cfg.MonitoringCenterRecipients(),
	})

	// Initialize workers
	dispatcher := services.NewNotificationDispatcher(cfg.InitNotificationSenders()...)
	workerConfig := workers.DefaultNotificationWorkerConfig()
	workerConfig.WorkerCount = cfg.NotificationWorkers
	notificationWorker := workers.NewNotificationWorker(queue, dispatcher, workerConfig)
	checkInWorker := workers.NewCheckInWorker(trackingService, workers.CheckInWorkerConfig{
		SweepInterval:    cfg.SweepInterval(),
		ReminderInterval: time.Minute,
	})

	if err := notificationWorker.Start(); err != nil {
		logrus.Fatal("Failed to start notification worker: ", err)
	}
	if err := checkInWorker.Start(); err != nil {
		logrus.Fatal("Failed to start check-in worker: ", err)
	}

	router := routes.SetupRoutes(routes.Dependencies{
		Config:          cfg,
		TrackingService: trackingService,
		Redis:           redis,
		Hub:             hub,
		HealthChecks:    healthChecks,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logrus.Info("VisitGuard tracking server starting on port ", cfg.Port)
		logrus.Info("Monitoring feed: /ws/monitoring")
		logrus.Info("Health check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	checkInWorker.Stop()
	trackingService.WaitPendingNotifications()
	notificationWorker.Stop()
	hub.Shutdown()

	logrus.Info("Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
