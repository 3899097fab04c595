package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"visitguard/interfaces"
	"visitguard/models"
	"visitguard/utils"

	"github.com/sirupsen/logrus"
)

const (
	maxSaveAttempts       = 5
	defaultNotifyTimeout  = 10 * time.Second
	defaultShareLinkTTL   = 24 * time.Hour
	defaultReminderPeriod = 5 * time.Minute
)

// errNoChange tells mutate the session is already in the requested state and
// must not be saved.
var errNoChange = errors.New("no change")

type TrackingConfig struct {
	DefaultCheckInIntervalMinutes int
	ShareLinkTTL                  time.Duration
	PublicBaseURL                 string
	AlertReminderInterval         time.Duration
	NotifyTimeout                 time.Duration
	MonitoringCenter              []models.NotificationRecipient

	// Clock and TokenGenerator default to time.Now and utils.GenerateShareToken.
	Clock          func() time.Time
	TokenGenerator func() (string, error)
}

// TrackingService owns the tracking session aggregate: lifecycle, check-in
// cadence, panic escalation and share links.
type TrackingService struct {
	store       interfaces.SessionStore
	notifier    interfaces.Notifier
	directory   interfaces.Directory
	broadcaster interfaces.Broadcaster
	locks       *utils.KeyedMutex
	config      TrackingConfig
	now         func() time.Time
	newToken    func() (string, error)
	pending     sync.WaitGroup
}

func NewTrackingService(
	store interfaces.SessionStore,
	notifier interfaces.Notifier,
	directory interfaces.Directory,
	broadcaster interfaces.Broadcaster,
	config TrackingConfig,
) *TrackingService {
	if config.DefaultCheckInIntervalMinutes <= 0 {
		config.DefaultCheckInIntervalMinutes = models.DefaultCheckInIntervalMinutes
	}
	if config.ShareLinkTTL <= 0 {
		config.ShareLinkTTL = defaultShareLinkTTL
	}
	if config.AlertReminderInterval <= 0 {
		config.AlertReminderInterval = defaultReminderPeriod
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = defaultNotifyTimeout
	}

	ts := &TrackingService{
		store:       store,
		notifier:    notifier,
		directory:   directory,
		broadcaster: broadcaster,
		locks:       utils.NewKeyedMutex(),
		config:      config,
		now:         config.Clock,
		newToken:    config.TokenGenerator,
	}
	if ts.now == nil {
		ts.now = time.Now
	}
	if ts.newToken == nil {
		ts.newToken = utils.GenerateShareToken
	}

	return ts
}

// =================== LIFECYCLE ===================

func (ts *TrackingService) Start(ctx context.Context, professionalID string, req models.StartTrackingRequest) (*models.TrackingSession, error) {
	unlock := ts.locks.Lock(req.VisitID)
	defer unlock()

	existing, err := ts.store.GetByVisitID(ctx, req.VisitID)
	switch {
	case err == nil:
		if existing.IsActive {
			return nil, utils.ErrAlreadyActive
		}
		return nil, utils.ErrSessionNotActive.WithDetails("visit already completed")
	case !errors.Is(err, utils.ErrNotFound):
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := ts.now()
	interval := req.IntervalMinutes
	if interval <= 0 {
		interval = ts.config.DefaultCheckInIntervalMinutes
	}
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = models.DefaultServiceType
	}

	session := &models.TrackingSession{
		VisitID:                req.VisitID,
		ProfessionalID:         professionalID,
		PatientID:              req.PatientID,
		ServiceType:            serviceType,
		PatientAddress:         req.Destination,
		Events:                 []models.TrackingEvent{},
		PanicAlerts:            []models.PanicAlert{},
		SharedWith:             []models.SharedContact{},
		IsActive:               true,
		StartedAt:              now,
		CheckInIntervalMinutes: interval,
		NextCheckInDue:         now.Add(time.Duration(interval) * time.Minute),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	ts.appendEvent(session, models.TrackingEvent{
		Type:     models.EventServiceStarted,
		Location: stampLocation(req.Location, now),
		Metadata: map[string]interface{}{
			"serviceType":     serviceType,
			"intervalMinutes": interval,
		},
		Timestamp: now,
	})

	if err := ts.store.Create(ctx, session); err != nil {
		if errors.Is(err, utils.ErrDuplicateVisit) {
			return nil, utils.ErrAlreadyActive
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"visitId":        session.VisitID,
		"professionalId": professionalID,
		"interval":       interval,
	}).Info("Tracking session started")

	ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	return session, nil
}

func (ts *TrackingService) CheckIn(ctx context.Context, visitID, professionalID string, req models.CheckInRequest) (*models.TrackingSession, error) {
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}

		now := ts.now()
		event := models.TrackingEvent{
			Type:         models.EventCheckIn,
			Location:     stampLocation(&req.Location, now),
			BatteryLevel: req.BatteryLevel,
			Timestamp:    now,
		}
		if req.Message != "" {
			event.Metadata = map[string]interface{}{"message": req.Message}
		}
		ts.appendEvent(session, event)

		due := now.Add(session.CheckInInterval())
		if due.After(session.NextCheckInDue) {
			session.NextCheckInDue = due
		}
		session.MissedCheckIns = 0

		// A check-in proves the professional is reachable again.
		session.IsPaused = false
		session.PausedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	return session, nil
}

func (ts *TrackingService) UpdateLocation(ctx context.Context, visitID, professionalID string, req models.LocationUpdateRequest) (*models.TrackingSession, error) {
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}

		eventType := models.EventLocationUpdate
		if req.Automatic {
			eventType = models.EventAutoCheck
		}

		now := ts.now()
		ts.appendEvent(session, models.TrackingEvent{
			Type:         eventType,
			Location:     stampLocation(&req.Location, now),
			BatteryLevel: req.BatteryLevel,
			Timestamp:    now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	return session, nil
}

func (ts *TrackingService) CheckOut(ctx context.Context, visitID, professionalID string, req models.CheckOutRequest) (*models.TrackingSession, error) {
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}

		now := ts.now()
		checkOut := models.TrackingEvent{
			Type:      models.EventCheckOut,
			Location:  stampLocation(&req.Location, now),
			Timestamp: now,
		}
		if req.Notes != "" {
			checkOut.Metadata = map[string]interface{}{"notes": req.Notes}
		}
		ts.appendEvent(session, checkOut)
		ts.appendEvent(session, models.TrackingEvent{
			Type: models.EventServiceCompleted,
			Metadata: map[string]interface{}{
				"durationMinutes": int(now.Sub(session.StartedAt).Minutes()),
				"missedCheckIns":  session.MissedCheckIns,
			},
			Timestamp: now,
		})

		session.IsActive = false
		session.IsPaused = false
		session.PausedAt = nil
		session.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visitId":  visitID,
		"duration": utils.FormatDuration(session.CompletedAt.Sub(session.StartedAt)),
	}).Info("Tracking session completed")

	ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	return session, nil
}

// Pause suspends missed check-in detection, e.g. while the professional is
// inside a facility without signal. Pausing a paused session is a no-op.
func (ts *TrackingService) Pause(ctx context.Context, visitID, professionalID string, req models.PauseTrackingRequest) (*models.TrackingSession, error) {
	changed := false
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		changed = false
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}
		if session.IsPaused {
			return errNoChange
		}

		now := ts.now()
		event := models.TrackingEvent{
			Type:      models.EventServicePaused,
			Location:  stampLocation(req.Location, now),
			Timestamp: now,
		}
		if req.Reason != "" {
			event.Metadata = map[string]interface{}{"reason": req.Reason}
		}
		ts.appendEvent(session, event)

		session.IsPaused = true
		session.PausedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	}
	return session, nil
}

// Resume re-arms missed check-in detection. The deadline only moves forward.
func (ts *TrackingService) Resume(ctx context.Context, visitID, professionalID string, req models.PauseTrackingRequest) (*models.TrackingSession, error) {
	changed := false
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		changed = false
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}
		if !session.IsPaused {
			return errNoChange
		}

		now := ts.now()
		event := models.TrackingEvent{
			Type:      models.EventServiceResumed,
			Location:  stampLocation(req.Location, now),
			Timestamp: now,
		}
		if req.Reason != "" {
			event.Metadata = map[string]interface{}{"reason": req.Reason}
		}
		ts.appendEvent(session, event)

		due := now.Add(session.CheckInInterval())
		if due.After(session.NextCheckInDue) {
			session.NextCheckInDue = due
		}
		session.IsPaused = false
		session.PausedAt = nil
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ts.broadcast(models.WSTypeSessionEvent, session, lastEvent(session))
	}
	return session, nil
}

// =================== QUERIES ===================

// Get returns the full session to its owner.
func (ts *TrackingService) Get(ctx context.Context, visitID, professionalID string) (*models.TrackingSession, error) {
	session, err := ts.load(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if session.ProfessionalID != professionalID {
		return nil, utils.ErrUnauthorized
	}
	return session, nil
}

// GetForMonitoring returns the full session to monitoring staff.
func (ts *TrackingService) GetForMonitoring(ctx context.Context, visitID string) (*models.TrackingSession, error) {
	return ts.load(ctx, visitID)
}

func (ts *TrackingService) ListActive(ctx context.Context) ([]models.SessionSummary, error) {
	sessions, err := ts.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return summarize(sessions), nil
}

// WaitPendingNotifications blocks until every dispatched notification has
// been handed to the notifier.
func (ts *TrackingService) WaitPendingNotifications() {
	ts.pending.Wait()
}

// =================== INTERNALS ===================

func (ts *TrackingService) load(ctx context.Context, visitID string) (*models.TrackingSession, error) {
	session, err := ts.store.GetByVisitID(ctx, visitID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// mutate runs fn against the latest stored session and saves the result.
// Same-visit callers in this process are serialized by the keyed mutex, and
// the versioned save catches writers in other processes; on a conflict the
// whole load-apply-save cycle is retried.
func (ts *TrackingService) mutate(ctx context.Context, visitID string, fn func(session *models.TrackingSession) error) (*models.TrackingSession, error) {
	unlock := ts.locks.Lock(visitID)
	defer unlock()

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		session, err := ts.load(ctx, visitID)
		if err != nil {
			return nil, err
		}

		if err := fn(session); err != nil {
			if errors.Is(err, errNoChange) {
				return session, nil
			}
			return nil, err
		}

		session.UpdatedAt = ts.now()
		err = ts.store.Save(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, utils.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"visitId": visitID,
			"attempt": attempt,
		}).Debug("Session version conflict, retrying")
	}

	return nil, utils.ErrConcurrentUpdate
}

// appendEvent adds an event to the log and refreshes the location cache.
func (ts *TrackingService) appendEvent(session *models.TrackingSession, event models.TrackingEvent) {
	session.Events = append(session.Events, event)
	if event.Location != nil {
		location := *event.Location
		session.LastKnownLocation = &location
	}
}

// dispatch hands a notification to the notifier without blocking the caller.
// Delivery problems are logged, never returned.
func (ts *TrackingService) dispatch(notification models.Notification) {
	if ts.notifier == nil || len(notification.Recipients) == 0 {
		return
	}
	if notification.ID == "" {
		notification.ID = utils.GenerateUUID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = ts.now()
	}

	ts.pending.Add(1)
	go func() {
		defer ts.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("Notifier panicked for visit %s: %v", notification.VisitID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), ts.config.NotifyTimeout)
		defer cancel()

		if err := ts.notifier.Notify(ctx, notification); err != nil {
			logrus.WithFields(logrus.Fields{
				"visitId": notification.VisitID,
				"kind":    notification.Kind,
			}).Warnf("Failed to dispatch notification: %v", err)
		}
	}()
}

func (ts *TrackingService) broadcast(messageType string, session *models.TrackingSession, event *models.TrackingEvent) {
	if ts.broadcaster == nil {
		return
	}
	ts.broadcaster.BroadcastSessionUpdate(messageType, session, event)
}

func requireActiveOwner(session *models.TrackingSession, professionalID string) error {
	if session.ProfessionalID != professionalID {
		return utils.ErrUnauthorized
	}
	if !session.IsActive {
		return utils.ErrSessionNotActive
	}
	return nil
}

func stampLocation(location *models.GeoPoint, now time.Time) *models.GeoPoint {
	if location == nil {
		return nil
	}
	stamped := *location
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = now
	}
	return &stamped
}

func lastEvent(session *models.TrackingSession) *models.TrackingEvent {
	if len(session.Events) == 0 {
		return nil
	}
	event := session.Events[len(session.Events)-1]
	return &event
}

func summarize(sessions []models.TrackingSession) []models.SessionSummary {
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, sessions[i].Summary())
	}
	return summaries
}
