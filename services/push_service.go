package services

import (
	"context"
	"fmt"

	"visitguard/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// FCMPushSender publishes to an FCM topic. The recipient address is the topic
// the monitoring consoles subscribe to.
type FCMPushSender struct {
	client *messaging.Client
}

func NewFCMPushSender(client *messaging.Client) *FCMPushSender {
	return &FCMPushSender{client: client}
}

func (s *FCMPushSender) Channel() string {
	return models.ChannelPush
}

func (s *FCMPushSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	data := make(map[string]string, len(notification.Data)+3)
	for key, value := range notification.Data {
		data[key] = value
	}
	data["kind"] = notification.Kind
	data["severity"] = notification.Severity
	data["notificationId"] = notification.ID

	priority := "normal"
	sound := "default"
	if notification.Severity == models.SeverityHigh || notification.Severity == models.SeverityCritical {
		priority = "high"
		sound = "emergency"
	}

	message := &messaging.Message{
		Topic: recipient.Address,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				Sound: sound,
				Icon:  "ic_notification",
				Color: "#D32F2F",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Message,
					},
					Sound: sound,
				},
			},
		},
	}

	messageID, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"topic":     recipient.Address,
		"messageId": messageID,
	}).Debug("Push notification sent")

	return nil
}

// MockPushSender logs instead of sending. Used when Firebase is not configured.
type MockPushSender struct{}

func NewMockPushSender() *MockPushSender {
	return &MockPushSender{}
}

func (s *MockPushSender) Channel() string {
	return models.ChannelPush
}

func (s *MockPushSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	logrus.Infof("[MOCK PUSH] Topic: %s, Title: %s, Body: %s", recipient.Address, notification.Title, notification.Message)
	return nil
}
