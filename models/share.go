package models

import "time"

// MaxActiveSharedContacts bounds how many external contacts can follow a visit at once.
const MaxActiveSharedContacts = 3

// SharedContact is an external person allowed to follow the public view of a
// session through an opaque link token. Contacts are deactivated, never removed.
type SharedContact struct {
	Name         string     `json:"name" bson:"name"`
	Phone        string     `json:"phone" bson:"phone"`
	Relationship string     `json:"relationship,omitempty" bson:"relationship,omitempty"`
	Token        string     `json:"token" bson:"token"`
	URL          string     `json:"url" bson:"url"`
	NotifiedAt   *time.Time `json:"notifiedAt,omitempty" bson:"notifiedAt,omitempty"`
	IsActive     bool       `json:"isActive" bson:"isActive"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty" bson:"revokedAt,omitempty"`
}

// IsUsable reports whether the contact's token still grants access at the given time.
func (c SharedContact) IsUsable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return true
}

// PublicSessionView is everything an anonymous link holder may see. It must
// never carry patient identity, street-level address or clinical data.
type PublicSessionView struct {
	ProfessionalFirstName string    `json:"professionalFirstName"`
	ServiceType           string    `json:"serviceType"`
	LastKnownLocation     *GeoPoint `json:"lastKnownLocation,omitempty"`
	IsActive              bool      `json:"isActive"`
	StartedAt             time.Time `json:"startedAt"`
	PatientDistrict       string    `json:"patientDistrict,omitempty"`
	PanicActive           bool      `json:"panicActive"`
}

// PublicLiveUpdate is pushed to public viewers over the websocket.
type PublicLiveUpdate struct {
	LastKnownLocation *GeoPoint `json:"lastKnownLocation,omitempty"`
	IsActive          bool      `json:"isActive"`
	PanicActive       bool      `json:"panicActive"`
	Timestamp         time.Time `json:"timestamp"`
}
