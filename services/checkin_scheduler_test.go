package services

import (
	"context"
	"testing"
	"time"

	"visitguard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOverdue_MissedCheckInTimeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Start(ctx, professionalID, startRequest(visitID, 30))
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	session, err := env.service.CheckIn(ctx, visitID, professionalID, models.CheckInRequest{Location: here()})
	require.NoError(t, err)
	deadline := session.NextCheckInDue
	assert.Equal(t, env.clock.Now().Add(30*time.Minute), deadline)

	// t=20: not overdue yet
	env.clock.Advance(10 * time.Minute)
	swept, err := env.service.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	// t=45: first miss
	env.clock.Advance(25 * time.Minute)
	swept, err = env.service.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	session, err = env.service.Get(ctx, visitID, professionalID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.MissedCheckIns)
	assert.Equal(t, deadline, session.NextCheckInDue)

	// t=50: still no check-in, second miss
	env.clock.Advance(5 * time.Minute)
	swept, err = env.service.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	session, err = env.service.Get(ctx, visitID, professionalID)
	require.NoError(t, err)
	assert.Equal(t, 2, session.MissedCheckIns)
	assert.Equal(t, deadline, session.NextCheckInDue)

	env.flush()
	warnings := env.notifier.byKind(models.NotificationMissedCheckIn)
	require.Len(t, warnings, 2)
	for _, warning := range warnings {
		assert.Equal(t, models.SeverityWarning, warning.Severity)
		assert.Equal(t, monitoringCenter, warning.Recipients)
	}
	assert.Contains(t, env.broadcaster.updateTypes(), models.WSTypeMissedCheckIn)
}

func TestSweepOverdue_EscalatesSeverityAfterRepeatedMisses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Start(ctx, professionalID, startRequest(visitID, 10))
	require.NoError(t, err)
	env.clock.Advance(11 * time.Minute)

	for i := 0; i < 3; i++ {
		_, err := env.service.SweepOverdue(ctx)
		require.NoError(t, err)
	}
	env.flush()

	var severities []string
	for _, warning := range env.notifier.byKind(models.NotificationMissedCheckIn) {
		severities = append(severities, warning.Data["missedCheckIns"]+":"+warning.Severity)
	}
	assert.ElementsMatch(t, []string{"1:warning", "2:warning", "3:high"}, severities)
}

func TestSweepOverdue_SkipsInactiveAndPaused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"visit-done", "visit-paused", "visit-late"} {
		_, err := env.service.Start(ctx, professionalID, startRequest(id, 10))
		require.NoError(t, err)
	}
	_, err := env.service.CheckOut(ctx, "visit-done", professionalID, models.CheckOutRequest{Location: here()})
	require.NoError(t, err)
	_, err = env.service.Pause(ctx, "visit-paused", professionalID, models.PauseTrackingRequest{})
	require.NoError(t, err)

	env.clock.Advance(30 * time.Minute)

	overdue, err := env.service.ListOverdue(ctx, env.clock.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "visit-late", overdue[0].VisitID)

	swept, err := env.service.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}

func TestIncrementMissed_IgnoresSessionsThatCheckedIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Start(ctx, professionalID, startRequest(visitID, 30))
	require.NoError(t, err)

	// Not overdue: the counter must not move.
	session, incremented, err := env.service.IncrementMissed(ctx, visitID)
	require.NoError(t, err)
	assert.False(t, incremented)
	assert.Equal(t, 0, session.MissedCheckIns)

	env.clock.Advance(31 * time.Minute)
	session, incremented, err = env.service.IncrementMissed(ctx, visitID)
	require.NoError(t, err)
	assert.True(t, incremented)
	assert.Equal(t, 1, session.MissedCheckIns)
}

func TestListOverdueSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Start(ctx, professionalID, startRequest("visit-a", 10))
	require.NoError(t, err)
	_, err = env.service.Start(ctx, professionalID, startRequest("visit-b", 60))
	require.NoError(t, err)

	env.clock.Advance(15 * time.Minute)
	summaries, err := env.service.ListOverdueSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "visit-a", summaries[0].VisitID)
}
