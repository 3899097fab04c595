package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"visitguard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	channel string
	fail    map[string]bool

	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) Channel() string { return s.channel }

func (s *fakeSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	if s.fail[recipient.Address] {
		return errors.New("provider rejected " + recipient.Address)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipient.Address)
	return nil
}

func TestNotificationDispatcher_RoutesByChannel(t *testing.T) {
	sms := &fakeSender{channel: models.ChannelSMS}
	push := &fakeSender{channel: models.ChannelPush}
	dispatcher := NewNotificationDispatcher(sms, push, nil)

	failed, err := dispatcher.Deliver(context.Background(), models.Notification{
		ID:   "n-1",
		Kind: models.NotificationPanicAlert,
		Recipients: []models.NotificationRecipient{
			{Name: "Central", Channel: models.ChannelSMS, Address: "+5511900000000"},
			{Name: "Console", Channel: models.ChannelPush, Address: "monitoring"},
			{Name: "Inbox", Channel: models.ChannelEmail, Address: "ops@example.org"},
			{Name: "Blank", Channel: models.ChannelSMS},
		},
	})

	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, []string{"+5511900000000"}, sms.sent)
	assert.Equal(t, []string{"monitoring"}, push.sent)
	assert.ElementsMatch(t, []string{models.ChannelSMS, models.ChannelPush}, dispatcher.Channels())
}

func TestNotificationDispatcher_ReturnsFailedRecipients(t *testing.T) {
	sms := &fakeSender{
		channel: models.ChannelSMS,
		fail:    map[string]bool{"+5511911111111": true},
	}
	dispatcher := NewNotificationDispatcher(sms)

	bad := models.NotificationRecipient{Name: "Bad", Channel: models.ChannelSMS, Address: "+5511911111111"}
	good := models.NotificationRecipient{Name: "Good", Channel: models.ChannelSMS, Address: "+5511922222222"}

	failed, err := dispatcher.Deliver(context.Background(), models.Notification{
		ID:         "n-2",
		Recipients: []models.NotificationRecipient{bad, good},
	})

	assert.Error(t, err)
	assert.Equal(t, []models.NotificationRecipient{bad}, failed)
	assert.Equal(t, []string{"+5511922222222"}, sms.sent)
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		name         string
		notification models.Notification
		want         string
	}{
		{
			name:         "message only",
			notification: models.Notification{Message: "hello", Severity: models.SeverityInfo},
			want:         "hello",
		},
		{
			name:         "with title",
			notification: models.Notification{Title: "Missed check-in", Message: "visit v1", Severity: models.SeverityWarning},
			want:         "Missed check-in: visit v1",
		},
		{
			name:         "critical",
			notification: models.Notification{Title: "EMERGENCY", Message: "visit v1", Severity: models.SeverityCritical},
			want:         "[URGENT] EMERGENCY: visit v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatText(tt.notification))
		})
	}
}

func TestEmailRendering(t *testing.T) {
	notification := models.Notification{
		VisitID:  "v-9",
		Title:    "Help needed",
		Message:  "<script>alert(1)</script>",
		Severity: models.SeverityHigh,
		Data:     map[string]string{"b": "2", "a": "1"},
	}

	assert.Equal(t, "[HIGH] Help needed - visit v-9", emailSubject(notification))

	body := buildEmailHTML(notification)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")

	text := buildEmailText(notification)
	assert.Contains(t, text, "a: 1\nb: 2\n")
}
