package services

import (
	"context"
	"fmt"
	"time"

	"visitguard/models"

	"github.com/sirupsen/logrus"
)

// missedCheckInEscalation is the miss count from which the monitoring center
// is paged with high severity.
const missedCheckInEscalation = 3

// ListOverdue returns active, unpaused sessions whose check-in deadline is
// before now.
func (ts *TrackingService) ListOverdue(ctx context.Context, now time.Time) ([]models.TrackingSession, error) {
	sessions, err := ts.store.ListOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue sessions: %w", err)
	}
	return sessions, nil
}

// ListOverdueSummaries is ListOverdue at the current time, shaped for the dashboard.
func (ts *TrackingService) ListOverdueSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	sessions, err := ts.ListOverdue(ctx, ts.now())
	if err != nil {
		return nil, err
	}
	return summarize(sessions), nil
}

// IncrementMissed counts one missed check-in. The deadline is left untouched.
// The session is re-checked under its lock, so a check-in that lands between
// the overdue query and this call is not counted; incremented reports whether
// the counter moved.
func (ts *TrackingService) IncrementMissed(ctx context.Context, visitID string) (*models.TrackingSession, bool, error) {
	incremented := false
	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		incremented = false
		if !session.IsActive || session.IsPaused || !session.NextCheckInDue.Before(ts.now()) {
			return errNoChange
		}
		session.MissedCheckIns++
		incremented = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return session, incremented, nil
}

// SweepOverdue counts a missed check-in on every overdue session and warns the
// monitoring center. Running it twice in a row counts twice: each sweep is one
// observation of the stored deadline against the clock.
func (ts *TrackingService) SweepOverdue(ctx context.Context) (int, error) {
	now := ts.now()
	overdue, err := ts.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, candidate := range overdue {
		session, incremented, err := ts.IncrementMissed(ctx, candidate.VisitID)
		if err != nil {
			logrus.WithField("visitId", candidate.VisitID).Errorf("Failed to record missed check-in: %v", err)
			continue
		}
		if !incremented {
			continue
		}
		count++

		logrus.WithFields(logrus.Fields{
			"visitId":        session.VisitID,
			"professionalId": session.ProfessionalID,
			"missedCheckIns": session.MissedCheckIns,
			"overdueBy":      now.Sub(session.NextCheckInDue).Round(time.Second).String(),
		}).Warn("Missed check-in")

		ts.dispatch(ts.missedCheckInNotification(session, now))
		ts.broadcast(models.WSTypeMissedCheckIn, session, nil)
	}

	return count, nil
}

func (ts *TrackingService) missedCheckInNotification(session *models.TrackingSession, now time.Time) models.Notification {
	severity := models.SeverityWarning
	if session.MissedCheckIns >= missedCheckInEscalation {
		severity = models.SeverityHigh
	}

	return models.Notification{
		VisitID:  session.VisitID,
		Kind:     models.NotificationMissedCheckIn,
		Severity: severity,
		Title:    "Missed check-in",
		Message: fmt.Sprintf("Visit %s: professional missed %d check-in(s), overdue since %s.",
			session.VisitID, session.MissedCheckIns, session.NextCheckInDue.UTC().Format(time.RFC3339)),
		Recipients: ts.config.MonitoringCenter,
		Data: map[string]string{
			"visitId":        session.VisitID,
			"professionalId": session.ProfessionalID,
			"missedCheckIns": fmt.Sprintf("%d", session.MissedCheckIns),
			"overdueMinutes": fmt.Sprintf("%d", int(now.Sub(session.NextCheckInDue).Minutes())),
		},
	}
}
