package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"visitguard/models"
	"visitguard/utils"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEnvelope struct {
	Type    string          `json:"type"`
	VisitID string          `json:"visitId"`
	Data    json.RawMessage `json:"data"`
}

func (ts *testServer) dial(server *httptest.Server, path string) (*gorillaws.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	return gorillaws.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *gorillaws.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPublicViewerWebSocket(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	t.Cleanup(server.Close)
	pro := ts.token("pro-1", utils.RoleProfessional)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))
	w, body := ts.do(http.MethodPost, "/api/v1/tracking/visit-1/shares", pro, map[string]interface{}{
		"name":  "Maria",
		"phone": "+5511988880001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var contact models.SharedContact
	require.NoError(t, json.Unmarshal(body.Data, &contact))

	conn, _, err := ts.dial(server, "/public/track/"+contact.Token+"/ws")
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, models.WSTypePublicView, first.Type)
	var view models.PublicSessionView
	require.NoError(t, json.Unmarshal(first.Data, &view))
	assert.True(t, view.IsActive)
	assert.NotContains(t, string(first.Data), "patient-42")

	require.Eventually(t, func() bool {
		return ts.hub.ViewerCount("visit-1") == 1
	}, time.Second, 10*time.Millisecond)

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/check-in", pro, location)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	update := readMessage(t, conn)
	assert.Equal(t, models.WSTypeLiveUpdate, update.Type)
	assert.NotContains(t, string(update.Data), "Haddock")

	w, _ = ts.do(http.MethodPost, "/api/v1/tracking/visit-1/shares/revoke", pro, map[string]interface{}{
		"phone": "+5511988880001",
	})
	require.Equal(t, http.StatusOK, w.Code)

	closed := readMessage(t, conn)
	assert.Equal(t, models.WSTypeLinkClosed, closed.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return ts.hub.ViewerCount("visit-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPublicViewerWebSocket_RejectsBadLink(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	t.Cleanup(server.Close)

	_, resp, err := ts.dial(server, "/public/track/not-a-token/ws")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMonitoringWebSocket(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	t.Cleanup(server.Close)
	pro := ts.token("pro-1", utils.RoleProfessional)

	_, _ = ts.do(http.MethodPost, "/api/v1/tracking/start", pro, startBody("visit-1"))

	_, resp, err := ts.dial(server, "/ws/monitoring?token="+pro)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = ts.dial(server, "/ws/monitoring")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := ts.dial(server, "/ws/monitoring?token="+ts.token("ops-1", utils.RoleMonitoring))
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readMessage(t, conn)
	assert.Equal(t, models.WSTypeSnapshot, snapshot.Type)
	var sessions []models.SessionSummary
	require.NoError(t, json.Unmarshal(snapshot.Data, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "visit-1", sessions[0].VisitID)

	require.Eventually(t, func() bool {
		return ts.hub.GetStats().ActiveConnections == 1
	}, time.Second, 10*time.Millisecond)

	w, _ := ts.do(http.MethodPost, "/api/v1/tracking/visit-1/panic", pro, map[string]interface{}{
		"level":    models.PanicLevelEmergency,
		"location": location["location"],
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	event := readMessage(t, conn)
	assert.Equal(t, models.WSTypePanicAlert, event.Type)
	assert.Equal(t, "visit-1", event.VisitID)

	w, body := ts.do(http.MethodGet, "/api/v1/ws/stats", ts.token("ops-1", utils.RoleMonitoring), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.WSHubStats
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.Equal(t, 1, stats.ActiveConnections)
}
