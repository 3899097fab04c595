// models/websocket.go
package models

import (
	"time"
)

// WebSocket Message Types
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	VisitID   string      `json:"visitId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WSSessionEvent is sent to monitoring staff whenever a session changes.
type WSSessionEvent struct {
	VisitID   string         `json:"visitId"`
	Event     *TrackingEvent `json:"event,omitempty"`
	Summary   SessionSummary `json:"summary"`
	Timestamp time.Time      `json:"timestamp"`
}

type WSHubStats struct {
	ActiveConnections int       `json:"activeConnections"`
	TotalConnections  int64     `json:"totalConnections"`
	ActiveRooms       int       `json:"activeRooms"`
	MessagesSent      int64     `json:"messagesSent"`
	StartTime         time.Time `json:"startTime"`
}

// WebSocket message types
const (
	WSTypeSnapshot      = "snapshot"
	WSTypePublicView    = "public_view"
	WSTypeSessionEvent  = "session_event"
	WSTypeMissedCheckIn = "missed_check_in"
	WSTypePanicAlert    = "panic_alert"
	WSTypeLiveUpdate    = "live_update"
	WSTypeLinkClosed    = "link_closed"
	WSTypeError         = "error"
)

// Room names
const (
	WSMonitoringRoom   = "monitoring"
	WSVisitRoomPrefix  = "visit:"
	WSErrorRateLimit   = "RATE_LIMIT"
	WSErrorLinkRevoked = "LINK_REVOKED"
)
