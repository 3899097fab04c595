package models

import "time"

// Notification is an outbound message decided by the tracking core. Delivery
// happens asynchronously through the notification queue.
type Notification struct {
	ID         string                  `json:"id"`
	VisitID    string                  `json:"visitId"`
	Kind       string                  `json:"kind"`
	Severity   string                  `json:"severity"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	Recipients []NotificationRecipient `json:"recipients"`
	Data       map[string]string       `json:"data,omitempty"`
	Attempts   int                     `json:"attempts"`
	CreatedAt  time.Time               `json:"createdAt"`
}

type NotificationRecipient struct {
	Name    string `json:"name"`
	Channel string `json:"channel"` // sms, push, email
	Address string `json:"address"`
}

// Notification kinds
const (
	NotificationPanicAlert    = "panic_alert"
	NotificationPanicCleared  = "panic_cleared"
	NotificationMissedCheckIn = "missed_check_in"
	NotificationAlertReminder = "alert_reminder"
	NotificationShareInvite   = "share_invite"
)

// Notification severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Delivery channels
const (
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelEmail = "email"
)
