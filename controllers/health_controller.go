package controllers

import (
	"context"
	"net/http"
	"time"

	"visitguard/utils"

	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type HealthController struct {
	checks    map[string]HealthCheck
	startedAt time.Time
}

func NewHealthController(checks map[string]HealthCheck) *HealthController {
	return &HealthController{
		checks:    checks,
		startedAt: time.Now(),
	}
}

// HealthCheck reports the status of every dependency
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			statuses[name] = "unhealthy"
			continue
		}
		statuses[name] = "healthy"
	}

	response := utils.HealthCheckResponse(statuses, serviceVersion, utils.FormatDuration(time.Since(hc.startedAt)))
	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, response)
}
