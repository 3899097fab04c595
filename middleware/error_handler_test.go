package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"visitguard/models"
	"visitguard/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newErrorRouter() *gin.Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	router.Use(NewErrorHandler("production", logger).Handle())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	router.GET("/service-error", func(c *gin.Context) { _ = c.Error(utils.ErrNoActiveAlert) })
	router.GET("/unknown-error", func(c *gin.Context) { _ = c.Error(errors.New("disk on fire")) })
	return router
}

func TestErrorHandler(t *testing.T) {
	router := newErrorRouter()

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{path: "/panic", status: http.StatusInternalServerError, code: models.ErrCodeInternal},
		{path: "/service-error", status: http.StatusNotFound, code: utils.ErrNoActiveAlert.Code},
		{path: "/unknown-error", status: http.StatusInternalServerError, code: models.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)

			var body models.APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, w.Body.String(), "disk on fire")
		})
	}
}
