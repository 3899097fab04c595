package config

import (
	"context"

	"visitguard/interfaces"
	"visitguard/models"
	"visitguard/services"

	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// MonitoringCenterRecipients returns the configured recipients paged on
// missed check-ins and panic alerts.
func (c *Config) MonitoringCenterRecipients() []models.NotificationRecipient {
	var recipients []models.NotificationRecipient

	if c.MonitoringCenterPhone != "" {
		recipients = append(recipients, models.NotificationRecipient{
			Name:    c.MonitoringCenterName,
			Channel: models.ChannelSMS,
			Address: c.MonitoringCenterPhone,
		})
	}
	if c.MonitoringCenterPushTopic != "" {
		recipients = append(recipients, models.NotificationRecipient{
			Name:    c.MonitoringCenterName,
			Channel: models.ChannelPush,
			Address: c.MonitoringCenterPushTopic,
		})
	}
	if c.MonitoringCenterEmail != "" {
		recipients = append(recipients, models.NotificationRecipient{
			Name:    c.MonitoringCenterName,
			Channel: models.ChannelEmail,
			Address: c.MonitoringCenterEmail,
		})
	}

	return recipients
}

// InitNotificationSenders builds one sender per channel. A channel without
// credentials falls back to a logging mock so development setups still work.
func (c *Config) InitNotificationSenders() []interfaces.NotificationSender {
	senders := []interfaces.NotificationSender{
		c.initSMSSender(),
		c.initPushSender(),
		c.initEmailSender(),
	}
	return senders
}

func (c *Config) initSMSSender() interfaces.NotificationSender {
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioPhoneNumber == "" {
		logrus.Warn("Twilio credentials not configured, using mock SMS sender")
		return services.NewMockSMSSender()
	}
	return services.NewTwilioSMSSender(c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioPhoneNumber)
}

func (c *Config) initPushSender() interfaces.NotificationSender {
	if c.FirebaseCredentials == "" {
		logrus.Warn("Firebase credentials not configured, using mock push sender")
		return services.NewMockPushSender()
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(c.FirebaseCredentials))
	if err != nil {
		logrus.Errorf("Failed to initialize Firebase: %v", err)
		return services.NewMockPushSender()
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		logrus.Errorf("Failed to get FCM client: %v", err)
		return services.NewMockPushSender()
	}

	return services.NewFCMPushSender(client)
}

func (c *Config) initEmailSender() interfaces.NotificationSender {
	if c.ResendAPIKey == "" {
		logrus.Warn("RESEND_API_KEY not configured, using mock email sender")
		return services.NewMockEmailSender()
	}
	return services.NewResendEmailSender(c.ResendAPIKey, c.EmailFrom, c.EmailName)
}
