package models

import "time"

// =================== TRACKING LIFECYCLE ===================

type StartTrackingRequest struct {
	VisitID         string         `json:"visitId" validate:"required,max=64"`
	PatientID       string         `json:"patientId" validate:"required,max=64"`
	ServiceType     string         `json:"serviceType,omitempty" validate:"omitempty,max=64"`
	Destination     PatientAddress `json:"destination" validate:"required"`
	IntervalMinutes int            `json:"intervalMinutes,omitempty" validate:"omitempty,min=5,max=240"`
	Location        *GeoPoint      `json:"location,omitempty" validate:"omitempty"`
}

type CheckInRequest struct {
	Location     GeoPoint `json:"location" validate:"required"`
	Message      string   `json:"message,omitempty" validate:"omitempty,max=500"`
	BatteryLevel *int     `json:"batteryLevel,omitempty" validate:"omitempty,min=0,max=100"`
}

type LocationUpdateRequest struct {
	Location     GeoPoint `json:"location" validate:"required"`
	BatteryLevel *int     `json:"batteryLevel,omitempty" validate:"omitempty,min=0,max=100"`
	// Automatic marks background pings sent by the device without user action.
	Automatic bool `json:"automatic"`
}

type CheckOutRequest struct {
	Location GeoPoint `json:"location" validate:"required"`
	Notes    string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type PauseTrackingRequest struct {
	Reason   string    `json:"reason,omitempty" validate:"omitempty,max=500"`
	Location *GeoPoint `json:"location,omitempty" validate:"omitempty"`
}

// =================== PANIC ===================

type ActivatePanicRequest struct {
	Level             string   `json:"level" validate:"required,panic_level"`
	Location          GeoPoint `json:"location" validate:"required"`
	AudioRecordingURL string   `json:"audioRecordingUrl,omitempty" validate:"omitempty,url"`
}

type CancelPanicRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type RespondAlertRequest struct {
	Resolution         string     `json:"resolution" validate:"required,max=1000"`
	Outcome            string     `json:"outcome,omitempty" validate:"omitempty,oneof=responded resolved false_alarm"`
	PoliceResponseTime *time.Time `json:"policeResponseTime,omitempty"`
}

// =================== SHARING ===================

type ShareSessionRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,phone"`
	Relationship   string `json:"relationship,omitempty" validate:"omitempty,max=50"`
	ExpiresInHours int    `json:"expiresInHours,omitempty" validate:"omitempty,min=1,max=72"`
}

type RevokeShareRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// =================== MONITORING ===================

// SessionSummary is the monitoring dashboard row for a visit.
type SessionSummary struct {
	VisitID           string     `json:"visitId"`
	ProfessionalID    string     `json:"professionalId"`
	ServiceType       string     `json:"serviceType"`
	IsActive          bool       `json:"isActive"`
	IsPaused          bool       `json:"isPaused"`
	StartedAt         time.Time  `json:"startedAt"`
	NextCheckInDue    time.Time  `json:"nextCheckInDue"`
	MissedCheckIns    int        `json:"missedCheckIns"`
	ActiveAlerts      int        `json:"activeAlerts"`
	LastKnownLocation *GeoPoint  `json:"lastKnownLocation,omitempty"`
	LastEventAt       *time.Time `json:"lastEventAt,omitempty"`
}

// Summary builds the dashboard row for the session.
func (s *TrackingSession) Summary() SessionSummary {
	summary := SessionSummary{
		VisitID:           s.VisitID,
		ProfessionalID:    s.ProfessionalID,
		ServiceType:       s.ServiceType,
		IsActive:          s.IsActive,
		IsPaused:          s.IsPaused,
		StartedAt:         s.StartedAt,
		NextCheckInDue:    s.NextCheckInDue,
		MissedCheckIns:    s.MissedCheckIns,
		ActiveAlerts:      s.ActiveAlertCount(),
		LastKnownLocation: s.LastKnownLocation,
	}
	if n := len(s.Events); n > 0 {
		last := s.Events[n-1].Timestamp
		summary.LastEventAt = &last
	}
	return summary
}
