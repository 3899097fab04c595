package workers

import (
	"context"
	"sync"
	"time"

	"visitguard/interfaces"
	"visitguard/models"

	"github.com/sirupsen/logrus"
)

// NotificationDeliverer sends a notification and reports the recipients that
// could not be reached.
type NotificationDeliverer interface {
	Deliver(ctx context.Context, notification models.Notification) ([]models.NotificationRecipient, error)
}

type NotificationWorker struct {
	queue     interfaces.NotificationQueue
	deliverer NotificationDeliverer

	// Worker configuration
	config NotificationWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	stats      NotificationWorkerStats
	statsMutex sync.RWMutex
}

type NotificationWorkerConfig struct {
	WorkerCount       int           `json:"workerCount"`
	ProcessingTimeout time.Duration `json:"processingTimeout"`
	RetryAttempts     int           `json:"retryAttempts"`
	RetryDelay        time.Duration `json:"retryDelay"`
	PollTimeout       time.Duration `json:"pollTimeout"`
}

type NotificationWorkerStats struct {
	JobsProcessed      int64     `json:"jobsProcessed"`
	JobsFailed         int64     `json:"jobsFailed"`
	JobsRetried        int64     `json:"jobsRetried"`
	RecipientsReached  int64     `json:"recipientsReached"`
	AverageProcessTime float64   `json:"averageProcessTime"` // ms
	LastProcessedAt    time.Time `json:"lastProcessedAt"`
	StartTime          time.Time `json:"startTime"`
}

func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		WorkerCount:       3,
		ProcessingTimeout: 30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        2 * time.Second,
		PollTimeout:       5 * time.Second,
	}
}

func NewNotificationWorker(
	queue interfaces.NotificationQueue,
	deliverer NotificationDeliverer,
	config NotificationWorkerConfig,
) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = defaults.ProcessingTimeout
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaults.PollTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &NotificationWorker{
		queue:     queue,
		deliverer: deliverer,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		stats: NotificationWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (nw *NotificationWorker) Start() error {
	nw.mutex.Lock()
	defer nw.mutex.Unlock()

	if nw.isRunning {
		return nil
	}

	nw.isRunning = true

	logrus.Infof("Starting Notification Worker with %d workers", nw.config.WorkerCount)

	for i := 0; i < nw.config.WorkerCount; i++ {
		nw.wg.Add(1)
		go nw.worker(i)
	}

	return nil
}

func (nw *NotificationWorker) Stop() error {
	nw.mutex.Lock()
	defer nw.mutex.Unlock()

	if !nw.isRunning {
		return nil
	}

	logrus.Info("Stopping Notification Worker...")

	nw.cancel()
	nw.isRunning = false
	nw.wg.Wait()

	logrus.Info("Notification Worker stopped successfully")
	return nil
}

func (nw *NotificationWorker) worker(id int) {
	defer nw.wg.Done()

	logrus.Debugf("Notification worker %d started", id)

	for {
		select {
		case <-nw.ctx.Done():
			logrus.Debugf("Notification worker %d stopped", id)
			return
		default:
		}

		if _, err := nw.ProcessNext(nw.ctx); err != nil {
			if nw.ctx.Err() != nil {
				return
			}
			logrus.Errorf("Notification worker %d: %v", id, err)
			nw.sleep(nw.config.RetryDelay)
		}
	}
}

// ProcessNext takes one notification off the queue and delivers it. It
// reports false when the queue stayed empty for the poll timeout.
func (nw *NotificationWorker) ProcessNext(ctx context.Context) (bool, error) {
	notification, err := nw.queue.Dequeue(ctx, nw.config.PollTimeout)
	if err != nil {
		return false, err
	}
	if notification == nil {
		return false, nil
	}

	nw.process(*notification)
	return true, nil
}

func (nw *NotificationWorker) process(notification models.Notification) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(nw.ctx, nw.config.ProcessingTimeout)
	failed, err := nw.deliverer.Deliver(ctx, notification)
	cancel()

	reached := int64(len(notification.Recipients) - len(failed))
	retried := false
	dropped := false

	if err != nil && len(failed) > 0 {
		notification.Attempts++
		if notification.Attempts < nw.config.RetryAttempts {
			retry := notification
			retry.Recipients = failed
			nw.sleep(nw.config.RetryDelay)
			if requeueErr := nw.queue.Notify(context.Background(), retry); requeueErr != nil {
				logrus.Errorf("Failed to requeue notification %s: %v", notification.ID, requeueErr)
				dropped = true
			} else {
				retried = true
			}
		} else {
			dropped = true
		}

		if dropped {
			logrus.WithFields(logrus.Fields{
				"notificationId": notification.ID,
				"visitId":        notification.VisitID,
				"kind":           notification.Kind,
				"attempts":       notification.Attempts,
				"failed":         len(failed),
			}).Error("Giving up on notification recipients")
		}
	}

	nw.updateStats(time.Since(startTime), reached, retried, dropped)
}

func (nw *NotificationWorker) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-nw.ctx.Done():
	}
}

func (nw *NotificationWorker) updateStats(processTime time.Duration, reached int64, retried, dropped bool) {
	nw.statsMutex.Lock()
	defer nw.statsMutex.Unlock()

	nw.stats.JobsProcessed++
	nw.stats.RecipientsReached += reached
	if retried {
		nw.stats.JobsRetried++
	}
	if dropped {
		nw.stats.JobsFailed++
	}
	nw.stats.LastProcessedAt = time.Now()

	// Update average processing time
	ms := float64(processTime.Milliseconds())
	if nw.stats.JobsProcessed == 1 {
		nw.stats.AverageProcessTime = ms
	} else {
		nw.stats.AverageProcessTime = (nw.stats.AverageProcessTime*float64(nw.stats.JobsProcessed-1) + ms) / float64(nw.stats.JobsProcessed)
	}
}

func (nw *NotificationWorker) GetStats() NotificationWorkerStats {
	nw.statsMutex.RLock()
	defer nw.statsMutex.RUnlock()
	return nw.stats
}
