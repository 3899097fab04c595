package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackingSession is the live safety record of one field visit, from the
// moment the professional starts the visit until check-out.
type TrackingSession struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VisitID        string             `json:"visitId" bson:"visitId"`
	ProfessionalID string             `json:"professionalId" bson:"professionalId"`
	PatientID      string             `json:"patientId" bson:"patientId"`
	ServiceType    string             `json:"serviceType" bson:"serviceType"`
	PatientAddress PatientAddress     `json:"patientAddress" bson:"patientAddress"`

	Events      []TrackingEvent `json:"events" bson:"events"`
	PanicAlerts []PanicAlert    `json:"panicAlerts" bson:"panicAlerts"`
	SharedWith  []SharedContact `json:"sharedWith" bson:"sharedWith"`

	IsActive    bool       `json:"isActive" bson:"isActive"`
	IsPaused    bool       `json:"isPaused" bson:"isPaused"`
	PausedAt    *time.Time `json:"pausedAt,omitempty" bson:"pausedAt,omitempty"`
	StartedAt   time.Time  `json:"startedAt" bson:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	LastKnownLocation *GeoPoint `json:"lastKnownLocation,omitempty" bson:"lastKnownLocation,omitempty"`

	CheckInIntervalMinutes int       `json:"checkInIntervalMinutes" bson:"checkInIntervalMinutes"`
	NextCheckInDue         time.Time `json:"nextCheckInDue" bson:"nextCheckInDue"`
	MissedCheckIns         int       `json:"missedCheckIns" bson:"missedCheckIns"`

	// Version is bumped on every successful save and guards against lost updates.
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type GeoPoint struct {
	Latitude  float64   `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy,omitempty" bson:"accuracy,omitempty" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// PatientAddress is the visit destination. It is fixed at start.
type PatientAddress struct {
	Latitude   float64 `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64 `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	Street     string  `json:"street,omitempty" bson:"street,omitempty"`
	Number     string  `json:"number,omitempty" bson:"number,omitempty"`
	Complement string  `json:"complement,omitempty" bson:"complement,omitempty"`
	District   string  `json:"district,omitempty" bson:"district,omitempty"`
	City       string  `json:"city,omitempty" bson:"city,omitempty"`
	State      string  `json:"state,omitempty" bson:"state,omitempty"`
	PostalCode string  `json:"postalCode,omitempty" bson:"postalCode,omitempty"`
}

// TrackingEvent is an entry of the session event log. Events are never
// modified or reordered once appended.
type TrackingEvent struct {
	Type         string                 `json:"type" bson:"type"`
	Location     *GeoPoint              `json:"location,omitempty" bson:"location,omitempty"`
	BatteryLevel *int                   `json:"batteryLevel,omitempty" bson:"batteryLevel,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp" bson:"timestamp"`
}

// Tracking event types
const (
	EventCheckIn          = "check_in"
	EventCheckOut         = "check_out"
	EventLocationUpdate   = "location_update"
	EventAutoCheck        = "auto_check"
	EventPanicHelp        = "panic_help"
	EventPanicEmergency   = "panic_emergency"
	EventPanicCancelled   = "panic_cancelled"
	EventServiceStarted   = "service_started"
	EventServicePaused    = "service_paused"
	EventServiceResumed   = "service_resumed"
	EventServiceCompleted = "service_completed"
)

const (
	DefaultCheckInIntervalMinutes = 30
	DefaultServiceType            = "home_care"
)

// ActiveAlertCount returns how many panic alerts are still unanswered.
func (s *TrackingSession) ActiveAlertCount() int {
	count := 0
	for _, alert := range s.PanicAlerts {
		if alert.Status == PanicStatusActive {
			count++
		}
	}
	return count
}

// HasActivePanic reports whether at least one alert is still active.
func (s *TrackingSession) HasActivePanic() bool {
	return s.ActiveAlertCount() > 0
}

// CheckInInterval returns the configured cadence as a duration.
func (s *TrackingSession) CheckInInterval() time.Duration {
	return time.Duration(s.CheckInIntervalMinutes) * time.Minute
}
