package routes

import (
	"visitguard/controllers"

	"github.com/gin-gonic/gin"
)

// SetupPublicRoutes configures the share-link endpoints used by external contacts
func SetupPublicRoutes(router *gin.RouterGroup, publicController *controllers.PublicController, wsController *controllers.WebSocketController) {
	track := router.Group("/track")
	{
		track.GET("/:token", publicController.GetPublicView)
		track.GET("/:token/ws", wsController.HandlePublic)
	}
}
