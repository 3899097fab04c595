package services

import (
	"context"
	"fmt"

	"visitguard/models"
	"visitguard/utils"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxSMSLength keeps messages within two concatenated segments.
const maxSMSLength = 306

type TwilioSMSSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMSSender(accountSID, authToken, from string) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSSender{
		client: client,
		from:   from,
	}
}

func (s *TwilioSMSSender) Channel() string {
	return models.ChannelSMS
}

func (s *TwilioSMSSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient.Address)
	params.SetFrom(s.from)
	params.SetBody(utils.TruncateString(formatText(notification), maxSMSLength))

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	logrus.WithFields(logrus.Fields{
		"to":  utils.MaskPhoneNumber(recipient.Address),
		"sid": sid,
	}).Debug("SMS sent")

	return nil
}

// MockSMSSender logs instead of sending. Used when Twilio is not configured.
type MockSMSSender struct{}

func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{}
}

func (s *MockSMSSender) Channel() string {
	return models.ChannelSMS
}

func (s *MockSMSSender) Send(ctx context.Context, recipient models.NotificationRecipient, notification models.Notification) error {
	logrus.Infof("[MOCK SMS] To: %s, Body: %s", utils.MaskPhoneNumber(recipient.Address), formatText(notification))
	return nil
}
