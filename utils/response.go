package utils

import (
	"net/http"
	"time"

	"visitguard/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func writeSuccess(c *gin.Context, status int, message string, data interface{}, meta *models.MetaData) {
	c.JSON(status, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now(),
	})
}

func writeError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func SuccessResponse(c *gin.Context, message string, data interface{}) {
	writeSuccess(c, http.StatusOK, message, data, nil)
}

func SuccessResponseWithMeta(c *gin.Context, message string, data interface{}, meta *models.MetaData) {
	writeSuccess(c, http.StatusOK, message, data, meta)
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	writeSuccess(c, http.StatusCreated, message, data, nil)
}

// ErrorResponse derives the error code from the status.
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	writeError(c, statusCode, getErrorCode(statusCode), message, details)
}

func ValidationErrorResponse(c *gin.Context, validationErrors []ValidationError) {
	writeError(c, http.StatusBadRequest, models.ErrCodeValidation, "Validation failed", validationErrors)
}

func BadRequestResponse(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, models.ErrCodeValidation, message, nil)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	writeError(c, http.StatusUnauthorized, models.ErrCodeAuthentication, orDefault(message, "Unauthorized access"), nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	writeError(c, http.StatusForbidden, models.ErrCodeAuthorization, orDefault(message, "Access forbidden"), nil)
}

func RateLimitResponse(c *gin.Context) {
	writeError(c, http.StatusTooManyRequests, models.ErrCodeRateLimit, "Rate limit exceeded", nil)
}

func InternalServerErrorResponse(c *gin.Context, message string) {
	writeError(c, http.StatusInternalServerError, models.ErrCodeInternal, orDefault(message, "Internal server error"), nil)
}

// HandleServiceError writes the response for an error returned by a service.
// Known service errors keep their own code and status. Anything else is
// logged and reported as an internal error with the fallback message.
func HandleServiceError(c *gin.Context, err error, fallback string) {
	serviceErr, ok := GetServiceError(err)
	if !ok || serviceErr.StatusCode == 0 || serviceErr.StatusCode >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.Request.URL.Path,
		}).Errorf("%s: %v", fallback, err)
		InternalServerErrorResponse(c, fallback)
		return
	}

	writeError(c, serviceErr.StatusCode, serviceErr.Code, serviceErr.Message, nil)
}

// HealthCheckResponse reports unhealthy if any dependency is not "healthy".
func HealthCheckResponse(services map[string]string, version, uptime string) models.HealthResponse {
	status := "healthy"
	for _, serviceStatus := range services {
		if serviceStatus != "healthy" {
			status = "unhealthy"
			break
		}
	}

	return models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   version,
		Uptime:    uptime,
	}
}

func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return models.ErrCodeValidation
	case http.StatusUnauthorized:
		return models.ErrCodeAuthentication
	case http.StatusForbidden:
		return models.ErrCodeAuthorization
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusTooManyRequests:
		return models.ErrCodeRateLimit
	case http.StatusServiceUnavailable:
		return models.ErrCodeExternal
	default:
		return models.ErrCodeInternal
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
