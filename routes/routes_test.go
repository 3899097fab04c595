package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"visitguard/config"
	"visitguard/controllers"
	"visitguard/models"
	"visitguard/repositories"
	"visitguard/services"
	"visitguard/utils"
	"visitguard/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

type apiEnvelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Meta    *models.MetaData `json:"meta"`
	Error   *models.APIError `json:"error"`
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	jwt     *utils.JWTService
	service *services.TrackingService
	hub     *websocket.Hub
	healthy bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	service := services.NewTrackingService(repositories.NewMemoryTrackingRepository(), nil, nil, hub, services.TrackingConfig{
		PublicBaseURL: "https://visitguard.test",
	})

	ts := &testServer{
		t:       t,
		jwt:     utils.NewJWTService(testSecret),
		service: service,
		hub:     hub,
		healthy: true,
	}
	ts.router = SetupRoutes(Dependencies{
		Config: &config.Config{
			Environment:      "test",
			JWTSecret:        testSecret,
			RateLimitRequest: 60,
			RateLimitWindow:  1,
		},
		TrackingService: service,
		Hub:             hub,
		HealthChecks: map[string]controllers.HealthCheck{
			"store": func(ctx context.Context) error {
				if !ts.healthy {
					return errors.New("down")
				}
				return nil
			},
		},
	})
	return ts
}

func (ts *testServer) token(userID, role string) string {
	token, err := ts.jwt.GenerateAccessToken(userID, role)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiEnvelope) {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var envelope apiEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &envelope)
	return w, envelope
}

func startBody(visitID string) map[string]interface{} {
	return map[string]interface{}{
		"visitId":   visitID,
		"patientId": "patient-42",
		"destination": map[string]interface{}{
			"latitude":  -23.5614,
			"longitude": -46.6559,
			"street":    "Rua Haddock Lobo",
			"district":  "Cerqueira César",
		},
		"intervalMinutes": 15,
	}
}

var location = map[string]interface{}{
	"location": map[string]interface{}{"latitude": -23.5613, "longitude": -46.6558},
}

func TestTrackingLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)

	w, body := ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session models.TrackingSession
	require.NoError(t, json.Unmarshal(body.Data, &session))
	assert.Equal(t, "visit-1", session.VisitID)
	assert.Equal(t, "pro-1", session.ProfessionalID)

	w, body = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, utils.ErrAlreadyActive.Code, body.Error.Code)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/check-in", pro, location)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/location", pro, location)
	assert.Equal(t, http.StatusOK, w.Code)
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	assert.NotNil(t, summary.LastKnownLocation)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/pause", pro, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/resume", pro, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/check-out", pro, location)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/check-in", pro, location)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.ErrSessionNotActive.Code, body.Error.Code)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)

	w, body := ts.do(http.MethodPost, "/api/v1/tracking/start", pro, map[string]interface{}{"visitId": "v"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/panic", pro, map[string]interface{}{
		"level":    "mild",
		"location": location["location"],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingLocationsAreRejected(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)

	w, _ := ts.do(http.MethodPost, "/api/v1/tracking/start", pro, map[string]interface{}{
		"visitId":   "visit-1",
		"patientId": "patient-42",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/check-in", pro, location)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, path := range []string{"check-in", "location", "check-out"} {
		w, body := ts.do(http.MethodPost, "/api/v1/tracking/visit-1/"+path, pro, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		require.NotNil(t, body.Error, path)
		assert.Equal(t, models.ErrCodeValidation, body.Error.Code, path)
	}

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/panic", pro, map[string]interface{}{
		"level": models.PanicLevelEmergency,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	session, err := ts.service.Get(context.Background(), "visit-1", "pro-1")
	require.NoError(t, err)
	assert.Empty(t, session.PanicAlerts)
	assert.True(t, session.IsActive)
	require.NotNil(t, session.LastKnownLocation)
	assert.Equal(t, -23.5613, session.LastKnownLocation.Latitude)
	assert.Equal(t, -46.6558, session.LastKnownLocation.Longitude)
}

func TestRoleEnforcement(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)
	operator := ts.token("op-1", utils.RoleMonitoring)

	w, _ := ts.do(http.MethodGet, "/api/v1/monitoring/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = ts.do(http.MethodGet, "/api/v1/monitoring/sessions", pro, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", operator, startBody("visit-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	other := ts.token("pro-2", utils.RoleProfessional)
	w, body := ts.do(http.MethodGet, "/api/v1/tracking/visit-1", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ErrUnauthorized.Code, body.Error.Code)
}

func TestPanicAndMonitoringOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)
	operator := ts.token("op-1", utils.RoleMonitoring)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))

	w, body := ts.do(http.MethodPost, "/api/v1/tracking/visit-1/panic", pro, map[string]interface{}{
		"level":    models.PanicLevelEmergency,
		"location": location["location"],
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var alert models.PanicAlert
	require.NoError(t, json.Unmarshal(body.Data, &alert))
	assert.True(t, alert.PoliceNotified)

	w, body = ts.do(http.MethodGet, "/api/v1/monitoring/sessions", operator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []models.SessionSummary
	require.NoError(t, json.Unmarshal(body.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].ActiveAlerts)

	w, _ = ts.do(http.MethodGet, "/api/v1/monitoring/sessions/visit-1", operator, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(http.MethodPost, "/api/v1/monitoring/sessions/visit-1/alerts/respond", operator, map[string]interface{}{
		"resolution": "police dispatched",
		"outcome":    models.PanicStatusResolved,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = ts.do(http.MethodPost, "/api/v1/monitoring/sessions/visit-1/alerts/respond", operator, map[string]interface{}{
		"resolution": "again",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.ErrNoActiveAlert.Code, body.Error.Code)

	w, _ = ts.do(http.MethodGet, "/api/v1/monitoring/sessions/overdue", operator, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShareAndPublicViewOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	pro := ts.token("pro-1", utils.RoleProfessional)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))

	w, body := ts.do(http.MethodPost, "/api/v1/tracking/visit-1/shares", pro, map[string]interface{}{
		"name":  "Maria",
		"phone": "+55 11 98888-0001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var contact models.SharedContact
	require.NoError(t, json.Unmarshal(body.Data, &contact))
	assert.Equal(t, "https://visitguard.test/track/"+contact.Token, contact.URL)

	w, body = ts.do(http.MethodGet, "/api/v1/tracking/visit-1/shares", pro, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body.Meta)
	assert.Equal(t, int64(1), body.Meta.Total)

	w, body = ts.do(http.MethodGet, "/public/track/"+contact.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotContains(t, string(body.Data), "patient-42")
	assert.NotContains(t, string(body.Data), "Haddock")
	var view models.PublicSessionView
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "Cerqueira César", view.PatientDistrict)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/shares/revoke", pro, map[string]interface{}{
		"phone": "+55 11 98888-0001",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	revokedW, revokedBody := ts.do(http.MethodGet, "/public/track/"+contact.Token, "", nil)
	unknownW, unknownBody := ts.do(http.MethodGet, "/public/track/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, revokedW.Code)
	assert.Equal(t, unknownW.Code, revokedW.Code)
	assert.Equal(t, unknownBody.Error, revokedBody.Error)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.healthy = false
	w, _ = ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy", health.Services["store"])
}
