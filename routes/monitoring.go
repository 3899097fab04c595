package routes

import (
	"visitguard/controllers"
	"visitguard/middleware"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

// SetupMonitoringRoutes configures the monitoring center dashboard endpoints
func SetupMonitoringRoutes(router *gin.RouterGroup, monitoringController *controllers.MonitoringController, authMiddleware *middleware.AuthMiddleware) {
	monitoring := router.Group("/monitoring")
	monitoring.Use(authMiddleware.RequireRole(utils.RoleMonitoring, utils.RoleAdmin))

	sessions := monitoring.Group("/sessions")
	{
		sessions.GET("", monitoringController.ListActiveSessions)
		sessions.GET("/overdue", monitoringController.ListOverdueSessions)
		sessions.GET("/:visitId", monitoringController.GetSession)
		sessions.POST("/:visitId/alerts/respond", monitoringController.RespondToAlert)
	}
}
