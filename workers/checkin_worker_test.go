package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	mu        sync.Mutex
	sweeps    int
	reminders int
	sweepErr  error
}

func (m *fakeMonitor) SweepOverdue(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	if m.sweepErr != nil {
		return 0, m.sweepErr
	}
	return 2, nil
}

func (m *fakeMonitor) RemindActiveAlerts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders++
	return 1, nil
}

func (m *fakeMonitor) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps, m.reminders
}

func TestRunDueTasks_HonorsIntervals(t *testing.T) {
	monitor := &fakeMonitor{}
	worker := NewCheckInWorker(monitor, CheckInWorkerConfig{
		SweepInterval:    time.Minute,
		ReminderInterval: 5 * time.Minute,
	})

	start := time.Now()
	worker.RunDueTasks(start)
	sweeps, reminders := monitor.counts()
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, 1, reminders)

	worker.RunDueTasks(start.Add(30 * time.Second))
	sweeps, reminders = monitor.counts()
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, 1, reminders)

	worker.RunDueTasks(start.Add(time.Minute))
	sweeps, reminders = monitor.counts()
	assert.Equal(t, 2, sweeps)
	assert.Equal(t, 1, reminders)

	worker.RunDueTasks(start.Add(5 * time.Minute))
	sweeps, reminders = monitor.counts()
	assert.Equal(t, 3, sweeps)
	assert.Equal(t, 2, reminders)

	stats := worker.GetStats()
	assert.Equal(t, int64(6), stats.MissedCheckIns)
	assert.Equal(t, int64(2), stats.RemindersSent)
	assert.Equal(t, int64(5), stats.TasksExecuted)
	assert.Contains(t, stats.TaskExecutionTimes, "missed_checkin_sweep")
}

func TestRunDueTasks_CountsFailures(t *testing.T) {
	monitor := &fakeMonitor{sweepErr: errors.New("mongo unavailable")}
	worker := NewCheckInWorker(monitor, DefaultCheckInWorkerConfig())

	now := time.Now()
	worker.RunDueTasks(now)

	stats := worker.GetStats()
	assert.Equal(t, int64(1), stats.TasksFailed)
	assert.Equal(t, int64(1), stats.TasksExecuted)
	assert.Zero(t, stats.MissedCheckIns)

	// A failed task is rescheduled like a successful one.
	for _, task := range worker.GetTasks() {
		assert.Equal(t, now.Add(task.Interval), task.NextRun)
	}
}

func TestCheckInWorker_StartRunsImmediately(t *testing.T) {
	monitor := &fakeMonitor{}
	worker := NewCheckInWorker(monitor, CheckInWorkerConfig{
		SweepInterval:    time.Hour,
		ReminderInterval: time.Hour,
	})

	require.NoError(t, worker.Start())
	assert.Eventually(t, func() bool {
		sweeps, reminders := monitor.counts()
		return sweeps == 1 && reminders == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, worker.Stop())
	require.NoError(t, worker.Stop())
}
