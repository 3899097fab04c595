package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PanicAlert is a distress signal raised by the professional during a visit.
// Its status only moves from active to one of the terminal states.
type PanicAlert struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id"`
	Level              string             `json:"level" bson:"level"`
	Status             string             `json:"status" bson:"status"`
	ActivatedAt        time.Time          `json:"activatedAt" bson:"activatedAt"`
	Location           GeoPoint           `json:"location" bson:"location"`
	RespondedAt        *time.Time         `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	RespondedBy        string             `json:"respondedBy,omitempty" bson:"respondedBy,omitempty"`
	Resolution         string             `json:"resolution,omitempty" bson:"resolution,omitempty"`
	NotifiedContacts   []string           `json:"notifiedContacts" bson:"notifiedContacts"`
	PoliceNotified     bool               `json:"policeNotified" bson:"policeNotified"`
	PoliceResponseTime *time.Time         `json:"policeResponseTime,omitempty" bson:"policeResponseTime,omitempty"`
	AudioRecordingURL  string             `json:"audioRecordingUrl,omitempty" bson:"audioRecordingUrl,omitempty"`
	LastNotifiedAt     time.Time          `json:"lastNotifiedAt" bson:"lastNotifiedAt"`
}

// Panic levels
const (
	PanicLevelHelpNeeded = "help_needed"
	PanicLevelEmergency  = "emergency"
)

// Panic alert status
const (
	PanicStatusActive     = "active"
	PanicStatusResponded  = "responded"
	PanicStatusResolved   = "resolved"
	PanicStatusFalseAlarm = "false_alarm"
)

// EventTypeForLevel maps a panic level to the event logged on activation.
func EventTypeForLevel(level string) string {
	if level == PanicLevelEmergency {
		return EventPanicEmergency
	}
	return EventPanicHelp
}

// IsTerminalPanicStatus reports whether an alert in this status can no longer change.
func IsTerminalPanicStatus(status string) bool {
	switch status {
	case PanicStatusResponded, PanicStatusResolved, PanicStatusFalseAlarm:
		return true
	}
	return false
}
