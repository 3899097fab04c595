package controllers

import (
	"visitguard/models"
	"visitguard/services"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

// MonitoringController serves the monitoring center dashboard.
type MonitoringController struct {
	trackingService   *services.TrackingService
	validationService *utils.ValidationService
}

func NewMonitoringController(trackingService *services.TrackingService, validationService *utils.ValidationService) *MonitoringController {
	return &MonitoringController{
		trackingService:   trackingService,
		validationService: validationService,
	}
}

// ListActiveSessions lists every visit in progress
// @Summary List active sessions
// @Tags Monitoring
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.SessionSummary}
// @Router /monitoring/sessions [get]
func (mc *MonitoringController) ListActiveSessions(c *gin.Context) {
	sessions, err := mc.trackingService.ListActive(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to list active sessions")
		return
	}

	utils.SuccessResponseWithMeta(c, "Active sessions retrieved successfully", sessions, &models.MetaData{
		Total: int64(len(sessions)),
	})
}

// ListOverdueSessions lists visits past their check-in deadline
// @Summary List overdue sessions
// @Tags Monitoring
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.SessionSummary}
// @Router /monitoring/sessions/overdue [get]
func (mc *MonitoringController) ListOverdueSessions(c *gin.Context) {
	sessions, err := mc.trackingService.ListOverdueSummaries(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to list overdue sessions")
		return
	}

	utils.SuccessResponseWithMeta(c, "Overdue sessions retrieved successfully", sessions, &models.MetaData{
		Total: int64(len(sessions)),
	})
}

func (mc *MonitoringController) GetSession(c *gin.Context) {
	session, err := mc.trackingService.GetForMonitoring(c.Request.Context(), c.Param("visitId"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get tracking session")
		return
	}

	utils.SuccessResponse(c, "Tracking session retrieved successfully", session)
}

// RespondToAlert closes the earliest active panic alert of a visit
// @Summary Respond to panic alert
// @Tags Monitoring
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.RespondAlertRequest true "Response data"
// @Success 200 {object} models.APIResponse{data=models.PanicAlert}
// @Failure 404 {object} models.APIResponse
// @Router /monitoring/sessions/{visitId}/alerts/respond [post]
func (mc *MonitoringController) RespondToAlert(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RespondAlertRequest
	if !bindJSON(c, mc.validationService, &req) {
		return
	}

	alert, err := mc.trackingService.RespondToAlert(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to respond to panic alert")
		return
	}

	utils.SuccessResponse(c, "Panic alert answered", alert)
}
