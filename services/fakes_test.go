package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"visitguard/models"
	"visitguard/repositories"

	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []models.Notification
	err           error
	panics        bool
}

func (n *recordingNotifier) Notify(ctx context.Context, notification models.Notification) error {
	if n.panics {
		panic("notifier exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return n.err
}

func (n *recordingNotifier) byKind(kind string) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var matched []models.Notification
	for _, notification := range n.notifications {
		if notification.Kind == kind {
			matched = append(matched, notification)
		}
	}
	return matched
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []string
	closed  []string
}

func (b *recordingBroadcaster) BroadcastSessionUpdate(messageType string, session *models.TrackingSession, event *models.TrackingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, messageType)
}

func (b *recordingBroadcaster) CloseShareViewers(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, token)
}

func (b *recordingBroadcaster) updateTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.updates...)
}

func (b *recordingBroadcaster) closedTokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ProfessionalFirstName(ctx context.Context, professionalID string) (string, error) {
	args := m.Called(ctx, professionalID)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	service     *TrackingService
	store       *repositories.MemoryTrackingRepository
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	directory   *MockDirectory
	clock       *fakeClock
}

var monitoringCenter = []models.NotificationRecipient{
	{Name: "Central", Channel: models.ChannelSMS, Address: "+5511900000000"},
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:       repositories.NewMemoryTrackingRepository(),
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
		directory:   &MockDirectory{},
		clock:       newFakeClock(),
	}
	env.directory.On("ProfessionalFirstName", mock.Anything, mock.Anything).Return("Ana", nil).Maybe()

	env.service = NewTrackingService(env.store, env.notifier, env.directory, env.broadcaster, TrackingConfig{
		DefaultCheckInIntervalMinutes: 30,
		ShareLinkTTL:                  24 * time.Hour,
		PublicBaseURL:                 "https://track.example.org/",
		AlertReminderInterval:         5 * time.Minute,
		MonitoringCenter:              monitoringCenter,
		Clock:                         env.clock.Now,
	})
	return env
}

// flush waits for fire-and-forget notifications to reach the notifier.
func (env *testEnv) flush() {
	env.service.WaitPendingNotifications()
}

func startRequest(visitID string, interval int) models.StartTrackingRequest {
	return models.StartTrackingRequest{
		VisitID:   visitID,
		PatientID: "patient-42",
		Destination: models.PatientAddress{
			Latitude:  -23.5614,
			Longitude: -46.6559,
			Street:    "Rua Haddock Lobo",
			Number:    "595",
			District:  "Cerqueira César",
			City:      "São Paulo",
		},
		IntervalMinutes: interval,
		Location:        &models.GeoPoint{Latitude: -23.55, Longitude: -46.63},
	}
}

func here() models.GeoPoint {
	return models.GeoPoint{Latitude: -23.5613, Longitude: -46.6558, Accuracy: 8}
}
