package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visitguard/interfaces"
	"visitguard/models"
	"visitguard/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const DefaultNotificationQueueKey = "visitguard:notifications"

// RedisNotificationQueue is a FIFO outbox on a Redis list: producers LPUSH,
// workers BRPOP.
type RedisNotificationQueue struct {
	client *redis.Client
	key    string
}

func NewRedisNotificationQueue(client *redis.Client, key string) *RedisNotificationQueue {
	if key == "" {
		key = DefaultNotificationQueueKey
	}
	return &RedisNotificationQueue{client: client, key: key}
}

// Notify enqueues the notification for asynchronous delivery.
func (q *RedisNotificationQueue) Notify(ctx context.Context, notification models.Notification) error {
	if notification.ID == "" {
		notification.ID = utils.GenerateUUID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Dequeue waits up to timeout for the next notification. It returns nil, nil
// when the queue stayed empty.
func (q *RedisNotificationQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.Notification, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue notification: %w", err)
	}

	// BRPOP answers [key, value].
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var notification models.Notification
	if err := json.Unmarshal([]byte(result[1]), &notification); err != nil {
		logrus.Errorf("Dropping undecodable notification: %v", err)
		return nil, nil
	}
	return &notification, nil
}

func (q *RedisNotificationQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// =================== DISPATCHER ===================

// NotificationDispatcher routes each recipient of a notification to the
// sender of its channel.
type NotificationDispatcher struct {
	senders map[string]interfaces.NotificationSender
}

func NewNotificationDispatcher(senders ...interfaces.NotificationSender) *NotificationDispatcher {
	nd := &NotificationDispatcher{senders: make(map[string]interfaces.NotificationSender)}
	for _, sender := range senders {
		if sender != nil {
			nd.senders[sender.Channel()] = sender
		}
	}
	return nd
}

// Deliver sends the notification to every recipient and returns the ones that
// failed. Recipients on a channel without a sender are dropped with a warning.
func (nd *NotificationDispatcher) Deliver(ctx context.Context, notification models.Notification) ([]models.NotificationRecipient, error) {
	var failed []models.NotificationRecipient
	var errs []error

	for _, recipient := range notification.Recipients {
		sender, ok := nd.senders[recipient.Channel]
		if !ok {
			logrus.Warnf("No sender for channel %q, dropping recipient %s", recipient.Channel, recipient.Name)
			continue
		}
		if recipient.Address == "" {
			continue
		}

		if err := sender.Send(ctx, recipient, notification); err != nil {
			logrus.WithFields(logrus.Fields{
				"notificationId": notification.ID,
				"visitId":        notification.VisitID,
				"channel":        recipient.Channel,
				"recipient":      recipient.Name,
			}).Warnf("Notification delivery failed: %v", err)
			failed = append(failed, recipient)
			errs = append(errs, err)
		}
	}

	return failed, errors.Join(errs...)
}

// Channels lists the channels this dispatcher can deliver to.
func (nd *NotificationDispatcher) Channels() []string {
	channels := make([]string, 0, len(nd.senders))
	for channel := range nd.senders {
		channels = append(channels, channel)
	}
	return channels
}

// formatText renders a notification as a single plain-text line for SMS.
func formatText(notification models.Notification) string {
	content := notification.Message
	if notification.Title != "" {
		content = fmt.Sprintf("%s: %s", notification.Title, notification.Message)
	}
	if notification.Severity == models.SeverityCritical {
		content = "[URGENT] " + content
	}
	return content
}
