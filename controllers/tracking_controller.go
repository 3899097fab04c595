package controllers

import (
	"errors"
	"io"

	"visitguard/models"
	"visitguard/services"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

type TrackingController struct {
	trackingService   *services.TrackingService
	validationService *utils.ValidationService
}

func NewTrackingController(trackingService *services.TrackingService, validationService *utils.ValidationService) *TrackingController {
	return &TrackingController{
		trackingService:   trackingService,
		validationService: validationService,
	}
}

// =================== LIFECYCLE ===================

// StartTracking opens the tracking session of a visit
// @Summary Start visit tracking
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.StartTrackingRequest true "Visit data"
// @Success 201 {object} models.APIResponse{data=models.TrackingSession}
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /tracking/start [post]
func (tc *TrackingController) StartTracking(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.StartTrackingRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.Start(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to start tracking")
		return
	}

	utils.CreatedResponse(c, "Tracking started successfully", session)
}

// GetSession returns the caller's own session
// @Summary Get tracking session
// @Tags Tracking
// @Security BearerAuth
// @Produce json
// @Param visitId path string true "Visit ID"
// @Success 200 {object} models.APIResponse{data=models.TrackingSession}
// @Failure 403 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /tracking/{visitId} [get]
func (tc *TrackingController) GetSession(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	session, err := tc.trackingService.Get(c.Request.Context(), c.Param("visitId"), userID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get tracking session")
		return
	}

	utils.SuccessResponse(c, "Tracking session retrieved successfully", session)
}

// CheckIn records an explicit well-being signal and pushes the deadline out
// @Summary Check in
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.CheckInRequest true "Check-in data"
// @Success 200 {object} models.APIResponse{data=models.TrackingSession}
// @Router /tracking/{visitId}/check-in [post]
func (tc *TrackingController) CheckIn(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CheckInRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.CheckIn(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to check in")
		return
	}

	utils.SuccessResponse(c, "Check-in recorded successfully", session)
}

// UpdateLocation records a position without touching the check-in deadline
// @Summary Update location
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.LocationUpdateRequest true "Location data"
// @Success 200 {object} models.APIResponse{data=models.SessionSummary}
// @Router /tracking/{visitId}/location [post]
func (tc *TrackingController) UpdateLocation(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.LocationUpdateRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.UpdateLocation(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update location")
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", session.Summary())
}

// CheckOut completes the visit
// @Summary Check out
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.CheckOutRequest true "Check-out data"
// @Success 200 {object} models.APIResponse{data=models.TrackingSession}
// @Router /tracking/{visitId}/check-out [post]
func (tc *TrackingController) CheckOut(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CheckOutRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.CheckOut(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to check out")
		return
	}

	utils.SuccessResponse(c, "Visit completed successfully", session)
}

func (tc *TrackingController) Pause(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.PauseTrackingRequest
	if !bindOptionalJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.Pause(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to pause tracking")
		return
	}

	utils.SuccessResponse(c, "Tracking paused", session.Summary())
}

func (tc *TrackingController) Resume(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.PauseTrackingRequest
	if !bindOptionalJSON(c, tc.validationService, &req) {
		return
	}

	session, err := tc.trackingService.Resume(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to resume tracking")
		return
	}

	utils.SuccessResponse(c, "Tracking resumed", session.Summary())
}

// =================== PANIC ===================

// ActivatePanic raises a distress alert
// @Summary Activate panic
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.ActivatePanicRequest true "Panic data"
// @Success 201 {object} models.APIResponse{data=models.PanicAlert}
// @Router /tracking/{visitId}/panic [post]
func (tc *TrackingController) ActivatePanic(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ActivatePanicRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	alert, err := tc.trackingService.ActivatePanic(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to activate panic alert")
		return
	}

	utils.CreatedResponse(c, "Panic alert activated", alert)
}

func (tc *TrackingController) CancelPanic(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CancelPanicRequest
	if !bindOptionalJSON(c, tc.validationService, &req) {
		return
	}

	alert, err := tc.trackingService.CancelPanic(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to cancel panic alert")
		return
	}

	utils.SuccessResponse(c, "Panic alert cancelled", alert)
}

// =================== SHARING ===================

func (tc *TrackingController) ListShares(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	contacts, err := tc.trackingService.ListShares(c.Request.Context(), c.Param("visitId"), userID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to list shared contacts")
		return
	}

	utils.SuccessResponseWithMeta(c, "Shared contacts retrieved successfully", contacts, &models.MetaData{
		Total: int64(len(contacts)),
	})
}

// Share sends a live tracking link to an external contact
// @Summary Share visit
// @Tags Tracking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param visitId path string true "Visit ID"
// @Param request body models.ShareSessionRequest true "Contact data"
// @Success 201 {object} models.APIResponse{data=models.SharedContact}
// @Failure 409 {object} models.APIResponse
// @Router /tracking/{visitId}/shares [post]
func (tc *TrackingController) Share(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ShareSessionRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	contact, err := tc.trackingService.Share(c.Request.Context(), c.Param("visitId"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to share tracking session")
		return
	}

	utils.CreatedResponse(c, "Tracking link shared successfully", contact)
}

func (tc *TrackingController) RevokeShare(c *gin.Context) {
	userID := utils.GetUserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.RevokeShareRequest
	if !bindJSON(c, tc.validationService, &req) {
		return
	}

	if err := tc.trackingService.Revoke(c.Request.Context(), c.Param("visitId"), userID, req.Phone); err != nil {
		utils.HandleServiceError(c, err, "Failed to revoke tracking link")
		return
	}

	utils.SuccessResponse(c, "Tracking link revoked", nil)
}

// =================== HELPERS ===================

// bindJSON decodes and validates the request body, writing the error
// response itself when it fails.
func bindJSON(c *gin.Context, vs *utils.ValidationService, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}
	return validate(c, vs, req)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, vs *utils.ValidationService, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}
	return validate(c, vs, req)
}

func validate(c *gin.Context, vs *utils.ValidationService, req interface{}) bool {
	if vs == nil {
		return true
	}
	if validationErrors := vs.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
