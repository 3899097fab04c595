package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"visitguard/models"
	"visitguard/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryTrackingRepository keeps sessions in process memory with the same
// compare-and-swap semantics as TrackingRepository. It backs local runs
// started with DATABASE_URL=memory:// and the service tests.
type MemoryTrackingRepository struct {
	mutex    sync.RWMutex
	sessions map[string]*models.TrackingSession
}

func NewMemoryTrackingRepository() *MemoryTrackingRepository {
	return &MemoryTrackingRepository{
		sessions: make(map[string]*models.TrackingSession),
	}
}

func (mr *MemoryTrackingRepository) Create(ctx context.Context, session *models.TrackingSession) error {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	if _, exists := mr.sessions[session.VisitID]; exists {
		return utils.ErrDuplicateVisit
	}

	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	mr.sessions[session.VisitID] = cloneSession(session)
	return nil
}

func (mr *MemoryTrackingRepository) GetByVisitID(ctx context.Context, visitID string) (*models.TrackingSession, error) {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()

	session, ok := mr.sessions[visitID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cloneSession(session), nil
}

func (mr *MemoryTrackingRepository) GetByShareToken(ctx context.Context, token string) (*models.TrackingSession, error) {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()

	for _, session := range mr.sessions {
		for _, contact := range session.SharedWith {
			if contact.Token == token {
				return cloneSession(session), nil
			}
		}
	}
	return nil, utils.ErrNotFound
}

func (mr *MemoryTrackingRepository) Save(ctx context.Context, session *models.TrackingSession) error {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	stored, ok := mr.sessions[session.VisitID]
	if !ok || stored.Version != session.Version {
		return utils.ErrVersionConflict
	}

	session.Version++
	mr.sessions[session.VisitID] = cloneSession(session)
	return nil
}

func (mr *MemoryTrackingRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.TrackingSession, error) {
	sessions := mr.filter(func(s *models.TrackingSession) bool {
		return s.IsActive && !s.IsPaused && s.NextCheckInDue.Before(now)
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].NextCheckInDue.Before(sessions[j].NextCheckInDue)
	})
	return sessions, nil
}

func (mr *MemoryTrackingRepository) ListActive(ctx context.Context) ([]models.TrackingSession, error) {
	sessions := mr.filter(func(s *models.TrackingSession) bool {
		return s.IsActive
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (mr *MemoryTrackingRepository) ListWithActiveAlerts(ctx context.Context) ([]models.TrackingSession, error) {
	sessions := mr.filter(func(s *models.TrackingSession) bool {
		return s.HasActivePanic()
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.Before(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (mr *MemoryTrackingRepository) filter(keep func(*models.TrackingSession) bool) []models.TrackingSession {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()

	sessions := make([]models.TrackingSession, 0)
	for _, session := range mr.sessions {
		if keep(session) {
			sessions = append(sessions, *cloneSession(session))
		}
	}
	return sessions
}

// cloneSession deep-copies everything a caller could mutate in place.
func cloneSession(session *models.TrackingSession) *models.TrackingSession {
	clone := *session

	if session.Events != nil {
		clone.Events = make([]models.TrackingEvent, len(session.Events))
		for i, event := range session.Events {
			event.Location = cloneGeoPoint(event.Location)
			if event.BatteryLevel != nil {
				level := *event.BatteryLevel
				event.BatteryLevel = &level
			}
			if event.Metadata != nil {
				metadata := make(map[string]interface{}, len(event.Metadata))
				for k, v := range event.Metadata {
					metadata[k] = v
				}
				event.Metadata = metadata
			}
			clone.Events[i] = event
		}
	}

	if session.PanicAlerts != nil {
		clone.PanicAlerts = make([]models.PanicAlert, len(session.PanicAlerts))
		for i, alert := range session.PanicAlerts {
			alert.NotifiedContacts = append([]string(nil), alert.NotifiedContacts...)
			alert.RespondedAt = cloneTime(alert.RespondedAt)
			alert.PoliceResponseTime = cloneTime(alert.PoliceResponseTime)
			clone.PanicAlerts[i] = alert
		}
	}

	if session.SharedWith != nil {
		clone.SharedWith = make([]models.SharedContact, len(session.SharedWith))
		for i, contact := range session.SharedWith {
			contact.NotifiedAt = cloneTime(contact.NotifiedAt)
			contact.ExpiresAt = cloneTime(contact.ExpiresAt)
			contact.RevokedAt = cloneTime(contact.RevokedAt)
			clone.SharedWith[i] = contact
		}
	}

	clone.PausedAt = cloneTime(session.PausedAt)
	clone.CompletedAt = cloneTime(session.CompletedAt)
	clone.LastKnownLocation = cloneGeoPoint(session.LastKnownLocation)

	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneGeoPoint(p *models.GeoPoint) *models.GeoPoint {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
