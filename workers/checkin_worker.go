package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CheckInMonitor is the part of the tracking service the worker drives.
type CheckInMonitor interface {
	SweepOverdue(ctx context.Context) (int, error)
	RemindActiveAlerts(ctx context.Context) (int, error)
}

type CheckInWorker struct {
	monitor CheckInMonitor

	// Worker configuration
	config CheckInWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Scheduled tasks
	tasks      []ScheduledTask
	tasksMutex sync.Mutex

	// Metrics
	stats      CheckInWorkerStats
	statsMutex sync.RWMutex
}

type CheckInWorkerConfig struct {
	SweepInterval    time.Duration `json:"sweepInterval"`
	ReminderInterval time.Duration `json:"reminderInterval"`
	TickInterval     time.Duration `json:"tickInterval"`
	TaskTimeout      time.Duration `json:"taskTimeout"`
}

type ScheduledTask struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Interval    time.Duration `json:"interval"`
	LastRun     time.Time     `json:"lastRun"`
	NextRun     time.Time     `json:"nextRun"`
	Function    func(ctx context.Context) (int, error)
}

type CheckInWorkerStats struct {
	TasksExecuted      int64            `json:"tasksExecuted"`
	TasksFailed        int64            `json:"tasksFailed"`
	MissedCheckIns     int64            `json:"missedCheckIns"`
	RemindersSent      int64            `json:"remindersSent"`
	LastSweepAt        time.Time        `json:"lastSweepAt"`
	TaskExecutionTimes map[string]int64 `json:"taskExecutionTimes"` // ms
	StartTime          time.Time        `json:"startTime"`
}

func DefaultCheckInWorkerConfig() CheckInWorkerConfig {
	return CheckInWorkerConfig{
		SweepInterval:    time.Minute,
		ReminderInterval: time.Minute,
		TickInterval:     10 * time.Second,
		TaskTimeout:      30 * time.Second,
	}
}

func NewCheckInWorker(monitor CheckInMonitor, config CheckInWorkerConfig) *CheckInWorker {
	defaults := DefaultCheckInWorkerConfig()
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.ReminderInterval <= 0 {
		config.ReminderInterval = defaults.ReminderInterval
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.TickInterval > config.SweepInterval {
		config.TickInterval = config.SweepInterval
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	worker := &CheckInWorker{
		monitor: monitor,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		stats: CheckInWorkerStats{
			StartTime:          time.Now(),
			TaskExecutionTimes: make(map[string]int64),
		},
	}

	worker.initializeTasks(time.Now())
	return worker
}

func (cw *CheckInWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}

	cw.isRunning = true

	logrus.Info("Starting Check-In Worker...")

	cw.wg.Add(1)
	go cw.taskScheduler()

	logrus.Infof("Check-In Worker started with %d tasks", len(cw.tasks))
	return nil
}

func (cw *CheckInWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Check-In Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Check-In Worker stopped successfully")
	return nil
}

// Tasks are due immediately: a restarted process catches up on deadlines
// that passed while it was down.
func (cw *CheckInWorker) initializeTasks(now time.Time) {
	cw.tasks = []ScheduledTask{
		{
			Name:        "missed_checkin_sweep",
			Description: "Count missed check-ins on overdue sessions",
			Interval:    cw.config.SweepInterval,
			NextRun:     now,
			Function:    cw.sweep,
		},
		{
			Name:        "alert_reminders",
			Description: "Page the monitoring center again for unanswered alerts",
			Interval:    cw.config.ReminderInterval,
			NextRun:     now,
			Function:    cw.remind,
		},
	}
}

func (cw *CheckInWorker) taskScheduler() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.TickInterval)
	defer ticker.Stop()

	cw.RunDueTasks(time.Now())

	for {
		select {
		case now := <-ticker.C:
			cw.RunDueTasks(now)

		case <-cw.ctx.Done():
			return
		}
	}
}

// RunDueTasks executes every task whose next run is not after now.
func (cw *CheckInWorker) RunDueTasks(now time.Time) {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	for i := range cw.tasks {
		task := &cw.tasks[i]

		if now.Before(task.NextRun) {
			continue
		}

		ctx, cancel := context.WithTimeout(cw.ctx, cw.config.TaskTimeout)
		startTime := time.Now()
		count, err := task.Function(ctx)
		executionTime := time.Since(startTime)
		cancel()

		cw.statsMutex.Lock()
		cw.stats.TaskExecutionTimes[task.Name] = executionTime.Milliseconds()
		if err != nil {
			cw.stats.TasksFailed++
			logrus.Errorf("Task %s failed: %v", task.Name, err)
		} else {
			cw.stats.TasksExecuted++
			if count > 0 {
				logrus.Infof("Task %s handled %d session(s) in %v", task.Name, count, executionTime)
			}
		}
		cw.statsMutex.Unlock()

		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
	}
}

func (cw *CheckInWorker) sweep(ctx context.Context) (int, error) {
	count, err := cw.monitor.SweepOverdue(ctx)
	if err != nil {
		return 0, err
	}

	cw.statsMutex.Lock()
	cw.stats.MissedCheckIns += int64(count)
	cw.stats.LastSweepAt = time.Now()
	cw.statsMutex.Unlock()

	return count, nil
}

func (cw *CheckInWorker) remind(ctx context.Context) (int, error) {
	count, err := cw.monitor.RemindActiveAlerts(ctx)
	if err != nil {
		return 0, err
	}

	cw.statsMutex.Lock()
	cw.stats.RemindersSent += int64(count)
	cw.statsMutex.Unlock()

	return count, nil
}

func (cw *CheckInWorker) GetStats() CheckInWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()

	stats := cw.stats
	stats.TaskExecutionTimes = make(map[string]int64, len(cw.stats.TaskExecutionTimes))
	for name, ms := range cw.stats.TaskExecutionTimes {
		stats.TaskExecutionTimes[name] = ms
	}
	return stats
}

func (cw *CheckInWorker) GetTasks() []ScheduledTask {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	tasks := make([]ScheduledTask, len(cw.tasks))
	copy(tasks, cw.tasks)
	return tasks
}
