package services

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"visitguard/models"

	"github.com/resendlabs/resend-go"
	"github.com/sirupsen/logrus"
)

// ResendEmailSender delivers notifications through the Resend API.
type ResendEmailSender struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

func NewResendEmailSender(apiKey, fromEmail, fromName string) *ResendEmailSender {
	if fromName == "" {
		fromName = "VisitGuard"
	}
	return &ResendEmailSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *ResendEmailSender) Channel() string {
	return models.ChannelEmail
}

func (s *ResendEmailSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{recipient.Address},
		Subject: emailSubject(notification),
		Html:    buildEmailHTML(notification),
		Text:    buildEmailText(notification),
	}

	sent, err := s.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"to": recipient.Address,
		"id": sent.Id,
	}).Debug("Email sent")

	return nil
}

// MockEmailSender logs instead of sending. Used when Resend is not configured.
type MockEmailSender struct{}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (s *MockEmailSender) Channel() string {
	return models.ChannelEmail
}

func (s *MockEmailSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	logrus.Infof("[MOCK EMAIL] To: %s, Subject: %s", recipient.Address, emailSubject(notification))
	return nil
}

func emailSubject(notification models.Notification) string {
	prefix := ""
	switch notification.Severity {
	case models.SeverityCritical:
		prefix = "[CRITICAL] "
	case models.SeverityHigh:
		prefix = "[HIGH] "
	}
	return fmt.Sprintf("%s%s - visit %s", prefix, notification.Title, notification.VisitID)
}

func buildEmailHTML(notification models.Notification) string {
	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(notification.Title))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(notification.Message))

	if len(notification.Data) > 0 {
		b.WriteString("<table cellpadding=\"4\">")
		for _, key := range sortedKeys(notification.Data) {
			fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>",
				html.EscapeString(key), html.EscapeString(notification.Data[key]))
		}
		b.WriteString("</table>")
	}

	fmt.Fprintf(&b, "<p style=\"color:#888;\">Sent %s</p>", notification.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("</body></html>")
	return b.String()
}

func buildEmailText(notification models.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n", notification.Title, notification.Message)
	for _, key := range sortedKeys(notification.Data) {
		fmt.Fprintf(&b, "%s: %s\n", key, notification.Data[key])
	}
	return b.String()
}

func sortedKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
