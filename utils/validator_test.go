package utils

import (
	"testing"

	"visitguard/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateStruct_ShareRequest(t *testing.T) {
	vs := NewValidationService()

	valid := models.ShareSessionRequest{Name: "Maria", Phone: "+55 11 98888-0001", ExpiresInHours: 12}
	assert.Empty(t, vs.ValidateStruct(valid))

	invalid := models.ShareSessionRequest{Phone: "12", ExpiresInHours: 100}
	errs := vs.ValidateStruct(invalid)

	tags := make(map[string]string)
	for _, e := range errs {
		tags[e.Field] = e.Tag
	}
	assert.Equal(t, map[string]string{
		"Name":           "required",
		"Phone":          "phone",
		"ExpiresInHours": "max",
	}, tags)
}

func TestValidateStruct_PanicLevel(t *testing.T) {
	vs := NewValidationService()
	location := models.GeoPoint{Latitude: -23.5, Longitude: -46.6}

	assert.Empty(t, vs.ValidateStruct(models.ActivatePanicRequest{Level: models.PanicLevelEmergency, Location: location}))

	errs := vs.ValidateStruct(models.ActivatePanicRequest{Level: "mild", Location: location})
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "panic_level", errs[0].Tag)
		assert.Equal(t, "Invalid panic level", errs[0].Message)
	}
}

func TestValidateStruct_Coordinates(t *testing.T) {
	vs := NewValidationService()

	errs := vs.ValidateStruct(models.CheckInRequest{Location: models.GeoPoint{Latitude: 91, Longitude: -181}})
	assert.Len(t, errs, 2)
}

func TestValidateStruct_RequiresLocations(t *testing.T) {
	vs := NewValidationService()

	tests := []struct {
		name  string
		req   interface{}
		field string
	}{
		{"check-in", models.CheckInRequest{}, "Location"},
		{"location update", models.LocationUpdateRequest{}, "Location"},
		{"check-out", models.CheckOutRequest{}, "Location"},
		{"panic", models.ActivatePanicRequest{Level: models.PanicLevelEmergency}, "Location"},
		{"start", models.StartTrackingRequest{VisitID: "visit-1", PatientID: "patient-42"}, "Destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := vs.ValidateStruct(tt.req)
			if assert.Len(t, errs, 1) {
				assert.Equal(t, tt.field, errs[0].Field)
				assert.Equal(t, "required", errs[0].Tag)
			}
		})
	}

	// Optional locations stay optional.
	assert.Empty(t, vs.ValidateStruct(models.PauseTrackingRequest{}))
}
