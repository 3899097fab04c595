package routes

import (
	"visitguard/controllers"
	"visitguard/middleware"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes configures WebSocket related routes
func SetupWebSocketRoutes(router *gin.Engine, wsController *controllers.WebSocketController, authMiddleware *middleware.AuthMiddleware) {
	// The token travels as a query parameter and is checked by the handler
	router.GET("/ws/monitoring", wsController.HandleMonitoring)

	ws := router.Group("/api/v1/ws")
	ws.Use(authMiddleware.RequireAuth())
	ws.Use(authMiddleware.RequireRole(utils.RoleMonitoring, utils.RoleAdmin))
	{
		ws.GET("/stats", wsController.GetConnectionStats)
	}
}
