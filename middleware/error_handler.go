package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"visitguard/models"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorHandler recovers panics and renders errors attached with c.Error.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.processError(c, c.Errors.Last().Err)
		}
	}
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       RedactPath(c.Request.URL.Path),
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	if c.Writer.Written() {
		c.Abort()
		return
	}

	var details interface{}
	if eh.environment == "development" {
		details = map[string]interface{}{"panic": err}
	}
	utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", details)
	c.Abort()
}

func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	var validationErr validator.ValidationErrors

	switch {
	case errors.As(err, &validationErr):
		eh.logger.WithField("request_id", c.GetString("request_id")).Warnf("Validation error: %v", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "Validation failed", nil)

	case mongo.IsTimeout(err):
		eh.logError(c, err)
		utils.ErrorResponse(c, http.StatusGatewayTimeout, "Database operation timed out", nil)

	case mongo.IsNetworkError(err):
		eh.logError(c, err)
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database connection error", nil)

	default:
		utils.HandleServiceError(c, err, "An unexpected error occurred")
	}
}

func (eh *ErrorHandler) logError(c *gin.Context, err error) {
	eh.logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
		"path":       RedactPath(c.Request.URL.Path),
		"method":     c.Request.Method,
		"code":       models.ErrCodeExternal,
	}).Error("Server error")
}
