package services

import (
	"context"
	"fmt"
	"time"

	"visitguard/models"
	"visitguard/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =================== PANIC ESCALATION ===================

// ActivatePanic raises a new alert. Earlier alerts that are still active are
// left as they are; every activation is escalated on its own.
func (ts *TrackingService) ActivatePanic(ctx context.Context, visitID, professionalID string, req models.ActivatePanicRequest) (*models.PanicAlert, error) {
	var alert models.PanicAlert
	var contacts []models.SharedContact

	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}

		now := ts.now()
		location := stampLocation(&req.Location, now)
		contacts = usableContacts(session, now)

		alert = models.PanicAlert{
			ID:                primitive.NewObjectID(),
			Level:             req.Level,
			Status:            models.PanicStatusActive,
			ActivatedAt:       now,
			Location:          *location,
			NotifiedContacts:  contactNames(contacts),
			PoliceNotified:    req.Level == models.PanicLevelEmergency,
			AudioRecordingURL: req.AudioRecordingURL,
			LastNotifiedAt:    now,
		}
		session.PanicAlerts = append(session.PanicAlerts, alert)

		ts.appendEvent(session, models.TrackingEvent{
			Type:     models.EventTypeForLevel(req.Level),
			Location: location,
			Metadata: map[string]interface{}{
				"alertId":        alert.ID.Hex(),
				"level":          req.Level,
				"policeNotified": alert.PoliceNotified,
			},
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visitId":        visitID,
		"alertId":        alert.ID.Hex(),
		"level":          alert.Level,
		"policeNotified": alert.PoliceNotified,
		"contacts":       len(contacts),
	}).Warn("Panic alert activated")

	ts.escalate(session, alert, contacts)
	ts.broadcast(models.WSTypePanicAlert, session, lastEvent(session))
	return &alert, nil
}

// RespondToAlert records the monitoring center's response on the earliest
// active alert. It is accepted after check-out so late responses still close
// the alert.
func (ts *TrackingService) RespondToAlert(ctx context.Context, visitID, respondedBy string, req models.RespondAlertRequest) (*models.PanicAlert, error) {
	outcome := req.Outcome
	if outcome == "" {
		outcome = models.PanicStatusResponded
	}
	if !models.IsTerminalPanicStatus(outcome) {
		return nil, utils.NewValidationError("outcome must close the alert")
	}

	var alert models.PanicAlert
	var contacts []models.SharedContact
	remaining := 0

	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		index := earliestActiveAlert(session)
		if index < 0 {
			return utils.ErrNoActiveAlert
		}

		now := ts.now()
		target := &session.PanicAlerts[index]
		target.Status = outcome
		target.RespondedAt = &now
		target.RespondedBy = respondedBy
		target.Resolution = req.Resolution
		if req.PoliceResponseTime != nil {
			policeResponseTime := *req.PoliceResponseTime
			target.PoliceResponseTime = &policeResponseTime
		}

		alert = *target
		remaining = session.ActiveAlertCount()
		contacts = usableContacts(session, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visitId":     visitID,
		"alertId":     alert.ID.Hex(),
		"status":      alert.Status,
		"respondedBy": respondedBy,
		"remaining":   remaining,
	}).Info("Panic alert answered")

	if remaining == 0 {
		ts.notifyCleared(session, alert, contacts, true)
	}
	ts.broadcast(models.WSTypePanicAlert, session, nil)
	return &alert, nil
}

// CancelPanic lets the professional withdraw the earliest active alert, which
// is closed as a false alarm.
func (ts *TrackingService) CancelPanic(ctx context.Context, visitID, professionalID string, req models.CancelPanicRequest) (*models.PanicAlert, error) {
	var alert models.PanicAlert
	var contacts []models.SharedContact
	remaining := 0

	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}
		index := earliestActiveAlert(session)
		if index < 0 {
			return utils.ErrNoActiveAlert
		}

		now := ts.now()
		target := &session.PanicAlerts[index]
		target.Status = models.PanicStatusFalseAlarm
		target.RespondedAt = &now
		target.RespondedBy = professionalID
		target.Resolution = req.Reason
		alert = *target

		metadata := map[string]interface{}{"alertId": target.ID.Hex()}
		if req.Reason != "" {
			metadata["reason"] = req.Reason
		}
		ts.appendEvent(session, models.TrackingEvent{
			Type:      models.EventPanicCancelled,
			Metadata:  metadata,
			Timestamp: now,
		})

		remaining = session.ActiveAlertCount()
		contacts = usableContacts(session, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"visitId": visitID,
		"alertId": alert.ID.Hex(),
	}).Info("Panic alert cancelled by professional")

	ts.notifyCleared(session, alert, contacts, remaining == 0)
	ts.broadcast(models.WSTypePanicAlert, session, lastEvent(session))
	return &alert, nil
}

// RemindActiveAlerts pages the monitoring center again for every alert that
// stayed active longer than the reminder interval since its last page.
func (ts *TrackingService) RemindActiveAlerts(ctx context.Context) (int, error) {
	sessions, err := ts.store.ListWithActiveAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions with active alerts: %w", err)
	}

	reminded := 0
	for _, candidate := range sessions {
		var due []models.PanicAlert

		session, err := ts.mutate(ctx, candidate.VisitID, func(session *models.TrackingSession) error {
			due = due[:0]
			now := ts.now()
			for i := range session.PanicAlerts {
				alert := &session.PanicAlerts[i]
				if alert.Status != models.PanicStatusActive {
					continue
				}
				if now.Sub(alert.LastNotifiedAt) < ts.config.AlertReminderInterval {
					continue
				}
				alert.LastNotifiedAt = now
				due = append(due, *alert)
			}
			if len(due) == 0 {
				return errNoChange
			}
			return nil
		})
		if err != nil {
			logrus.WithField("visitId", candidate.VisitID).Errorf("Failed to remind active alerts: %v", err)
			continue
		}

		for _, alert := range due {
			ts.dispatch(ts.reminderNotification(session, alert))
			reminded++
		}
	}

	return reminded, nil
}

// =================== FAN-OUT ===================

func (ts *TrackingService) escalate(session *models.TrackingSession, alert models.PanicAlert, contacts []models.SharedContact) {
	severity := models.SeverityHigh
	title := "Help needed"
	if alert.Level == models.PanicLevelEmergency {
		severity = models.SeverityCritical
		title = "EMERGENCY"
	}

	data := alertData(session, alert)
	if alert.PoliceNotified {
		data["policeDispatch"] = "true"
	}

	ts.dispatch(models.Notification{
		VisitID:  session.VisitID,
		Kind:     models.NotificationPanicAlert,
		Severity: severity,
		Title:    title,
		Message: fmt.Sprintf("Visit %s: professional %s raised a %s alert at %.6f,%.6f.",
			session.VisitID, session.ProfessionalID, alert.Level, alert.Location.Latitude, alert.Location.Longitude),
		Recipients: ts.config.MonitoringCenter,
		Data:       data,
	})

	// Each contact gets their own link.
	for _, contact := range contacts {
		ts.dispatch(models.Notification{
			VisitID:  session.VisitID,
			Kind:     models.NotificationPanicAlert,
			Severity: severity,
			Title:    title,
			Message: fmt.Sprintf("%s: the professional you are following may need help. Follow live: %s",
				title, contact.URL),
			Recipients: []models.NotificationRecipient{smsRecipient(contact)},
			Data:       data,
		})
	}
}

// notifyCleared tells the monitoring center an alert was closed. Contacts are
// only told once no alert is left active.
func (ts *TrackingService) notifyCleared(session *models.TrackingSession, alert models.PanicAlert, contacts []models.SharedContact, notifyContacts bool) {
	data := alertData(session, alert)
	data["status"] = alert.Status

	ts.dispatch(models.Notification{
		VisitID:    session.VisitID,
		Kind:       models.NotificationPanicCleared,
		Severity:   models.SeverityInfo,
		Title:      "Alert closed",
		Message:    fmt.Sprintf("Visit %s: alert %s closed as %s.", session.VisitID, alert.ID.Hex(), alert.Status),
		Recipients: ts.config.MonitoringCenter,
		Data:       data,
	})

	if !notifyContacts {
		return
	}
	for _, contact := range contacts {
		ts.dispatch(models.Notification{
			VisitID:    session.VisitID,
			Kind:       models.NotificationPanicCleared,
			Severity:   models.SeverityInfo,
			Title:      "Alert closed",
			Message:    "The alert for the visit you are following has been closed.",
			Recipients: []models.NotificationRecipient{smsRecipient(contact)},
			Data:       data,
		})
	}
}

func (ts *TrackingService) reminderNotification(session *models.TrackingSession, alert models.PanicAlert) models.Notification {
	severity := models.SeverityHigh
	if alert.Level == models.PanicLevelEmergency {
		severity = models.SeverityCritical
	}

	data := alertData(session, alert)
	data["activeFor"] = utils.FormatDuration(ts.now().Sub(alert.ActivatedAt))

	return models.Notification{
		VisitID:  session.VisitID,
		Kind:     models.NotificationAlertReminder,
		Severity: severity,
		Title:    "Unanswered alert",
		Message: fmt.Sprintf("Visit %s: %s alert still unanswered after %s.",
			session.VisitID, alert.Level, data["activeFor"]),
		Recipients: ts.config.MonitoringCenter,
		Data:       data,
	}
}

func alertData(session *models.TrackingSession, alert models.PanicAlert) map[string]string {
	return map[string]string{
		"visitId":        session.VisitID,
		"professionalId": session.ProfessionalID,
		"alertId":        alert.ID.Hex(),
		"level":          alert.Level,
		"latitude":       fmt.Sprintf("%.6f", alert.Location.Latitude),
		"longitude":      fmt.Sprintf("%.6f", alert.Location.Longitude),
		"activatedAt":    alert.ActivatedAt.UTC().Format(time.RFC3339),
	}
}

// earliestActiveAlert returns the index of the oldest active alert, or -1.
// Alerts are appended in activation order.
func earliestActiveAlert(session *models.TrackingSession) int {
	for i := range session.PanicAlerts {
		if session.PanicAlerts[i].Status == models.PanicStatusActive {
			return i
		}
	}
	return -1
}

func usableContacts(session *models.TrackingSession, now time.Time) []models.SharedContact {
	var contacts []models.SharedContact
	for _, contact := range session.SharedWith {
		if contact.IsUsable(now) {
			contacts = append(contacts, contact)
		}
	}
	return contacts
}

func contactNames(contacts []models.SharedContact) []string {
	names := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		names = append(names, contact.Name)
	}
	return names
}

func smsRecipient(contact models.SharedContact) models.NotificationRecipient {
	return models.NotificationRecipient{
		Name:    contact.Name,
		Channel: models.ChannelSMS,
		Address: contact.Phone,
	}
}
