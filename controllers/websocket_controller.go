package controllers

import (
	"time"

	"visitguard/models"
	"visitguard/services"
	"visitguard/utils"
	"visitguard/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// TokenAuthenticator validates the access token passed on websocket upgrades,
// where browsers cannot set an Authorization header.
type TokenAuthenticator interface {
	Authenticate(token string) (*utils.Claims, error)
}

type WebSocketController struct {
	hub             *websocket.Hub
	trackingService *services.TrackingService
	auth            TokenAuthenticator
	upgrader        gorillaws.Upgrader
}

func NewWebSocketController(hub *websocket.Hub, trackingService *services.TrackingService, auth TokenAuthenticator, allowedOrigins []string) *WebSocketController {
	return &WebSocketController{
		hub:             hub,
		trackingService: trackingService,
		auth:            auth,
		upgrader:        websocket.NewUpgrader(allowedOrigins),
	}
}

// HandleMonitoring streams every session change to monitoring staff
// @Summary Monitoring live feed
// @Tags WebSocket
// @Param token query string true "Access token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Router /ws/monitoring [get]
func (wsc *WebSocketController) HandleMonitoring(c *gin.Context) {
	claims, err := wsc.auth.Authenticate(c.Query("token"))
	if err != nil {
		logrus.Warnf("WebSocket authentication failed: %v", err)
		utils.UnauthorizedResponse(c, "Invalid authentication token")
		return
	}

	if claims.Role != utils.RoleMonitoring && claims.Role != utils.RoleAdmin {
		utils.ForbiddenResponse(c, "Monitoring access required")
		return
	}

	sessions, err := wsc.trackingService.ListActive(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to load active sessions")
		return
	}

	conn, err := wsc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error
		logrus.Errorf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	client := websocket.NewMonitoringClient(conn, wsc.hub, c.Request, claims.UserID, claims.Role)
	client.Start(models.WSMessage{
		Type:      models.WSTypeSnapshot,
		Data:      sessions,
		Timestamp: time.Now(),
	})

	logrus.Infof("Monitoring WebSocket connected for user: %s", claims.UserID)
}

// HandlePublic streams the public projection of one visit to a link holder
// @Summary Public live view
// @Tags WebSocket
// @Param token path string true "Share token"
// @Success 101 "Switching Protocols"
// @Failure 404 {object} models.APIResponse
// @Router /public/track/{token}/ws [get]
func (wsc *WebSocketController) HandlePublic(c *gin.Context) {
	access, err := wsc.trackingService.AuthorizeShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to open tracking link")
		return
	}

	conn, err := wsc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("Failed to upgrade public WebSocket connection: %v", err)
		return
	}

	client := websocket.NewPublicClient(conn, wsc.hub, c.Request, access.VisitID, access.Token, access.ExpiresAt)
	client.Start(models.WSMessage{
		Type:      models.WSTypePublicView,
		Data:      access.View,
		Timestamp: time.Now(),
	})
}

// GetConnectionStats gets WebSocket connection statistics
// @Summary Get connection statistics
// @Tags WebSocket
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.WSHubStats}
// @Router /ws/stats [get]
func (wsc *WebSocketController) GetConnectionStats(c *gin.Context) {
	utils.SuccessResponse(c, "Connection statistics retrieved successfully", wsc.hub.GetStats())
}
