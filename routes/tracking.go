package routes

import (
	"visitguard/controllers"
	"visitguard/middleware"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

// SetupTrackingRoutes configures the professional's visit endpoints
func SetupTrackingRoutes(router *gin.RouterGroup, trackingController *controllers.TrackingController, authMiddleware *middleware.AuthMiddleware) {
	tracking := router.Group("/tracking")
	tracking.Use(authMiddleware.RequireRole(utils.RoleProfessional))
	{
		tracking.POST("/start", trackingController.StartTracking)
		tracking.GET("/:visitId", trackingController.GetSession)
		tracking.POST("/:visitId/check-in", trackingController.CheckIn)
		tracking.POST("/:visitId/location", trackingController.UpdateLocation)
		tracking.POST("/:visitId/check-out", trackingController.CheckOut)
		tracking.POST("/:visitId/pause", trackingController.Pause)
		tracking.POST("/:visitId/resume", trackingController.Resume)
	}

	// Panic button
	alerts := tracking.Group("/:visitId/panic")
	{
		alerts.POST("", trackingController.ActivatePanic)
		alerts.POST("/cancel", trackingController.CancelPanic)
	}

	// Share links
	shares := tracking.Group("/:visitId/shares")
	{
		shares.GET("", trackingController.ListShares)
		shares.POST("", trackingController.Share)
		shares.POST("/revoke", trackingController.RevokeShare)
	}
}
