package controllers

import (
	"visitguard/services"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

// PublicController answers anonymous share-link holders. Every failure maps
// to the same not-found response so tokens cannot be probed.
type PublicController struct {
	trackingService *services.TrackingService
}

func NewPublicController(trackingService *services.TrackingService) *PublicController {
	return &PublicController{
		trackingService: trackingService,
	}
}

// GetPublicView returns the narrowed view of a shared visit
// @Summary Public tracking view
// @Tags Public
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} models.APIResponse{data=models.PublicSessionView}
// @Failure 404 {object} models.APIResponse
// @Router /public/track/{token} [get]
func (pc *PublicController) GetPublicView(c *gin.Context) {
	view, err := pc.trackingService.ResolvePublic(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to open tracking link")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	utils.SuccessResponse(c, "Tracking view retrieved successfully", view)
}
