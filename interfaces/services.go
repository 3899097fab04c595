package interfaces

import (
	"context"
	"time"

	"visitguard/models"
)

// SessionStore persists tracking sessions, one document per visit.
//
// Save is a compare-and-swap on session.Version: it succeeds only if the
// stored version still equals the one the session was loaded with, bumps the
// version on success and returns utils.ErrVersionConflict otherwise.
type SessionStore interface {
	Create(ctx context.Context, session *models.TrackingSession) error
	GetByVisitID(ctx context.Context, visitID string) (*models.TrackingSession, error)
	Save(ctx context.Context, session *models.TrackingSession) error
	ListOverdue(ctx context.Context, now time.Time) ([]models.TrackingSession, error)
	ListActive(ctx context.Context) ([]models.TrackingSession, error)
	ListWithActiveAlerts(ctx context.Context) ([]models.TrackingSession, error)
	GetByShareToken(ctx context.Context, token string) (*models.TrackingSession, error)
}

// Notifier accepts an outbound notification. Implementations must not block
// on delivery.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// NotificationQueue is the durable outbox between the tracking core and the
// delivery workers.
type NotificationQueue interface {
	Notifier
	Dequeue(ctx context.Context, timeout time.Duration) (*models.Notification, error)
	Len(ctx context.Context) (int64, error)
}

// NotificationSender delivers one notification to one recipient over a
// single channel.
type NotificationSender interface {
	Channel() string
	Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error
}

// Directory resolves platform identities the tracking core only references.
type Directory interface {
	ProfessionalFirstName(ctx context.Context, professionalID string) (string, error)
}

// Broadcaster pushes live session changes to connected websocket clients.
type Broadcaster interface {
	BroadcastSessionUpdate(messageType string, session *models.TrackingSession, event *models.TrackingEvent)
	CloseShareViewers(token string)
}
